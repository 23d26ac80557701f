package schedule

import (
	"errors"
	"fmt"
	"time"

	"medtracker/internal/models"
)

// ErrMalformedRecurrence marks reminder data that cannot describe a valid
// schedule. It is surfaced at creation and edit time; the resolver and
// flattener treat the same defects as silently inert instead.
var ErrMalformedRecurrence = errors.New("malformed recurrence")

// ValidateReminder checks the structural invariants a reminder must satisfy
// before it is persisted: an ordered date range, a non-empty slot list with
// unique known labels and valid 24h clock times, and a weekday set for
// weekly recurrence.
func ValidateReminder(rem *models.Reminder) error {
	if !rem.RecurrenceMode.Valid() {
		return fmt.Errorf("%w: unknown recurrence mode %q", ErrMalformedRecurrence, rem.RecurrenceMode)
	}

	if rem.RecurrenceMode != models.RecurOnce && Midnight(rem.StartDate).After(Midnight(rem.EndDate)) {
		return fmt.Errorf("%w: start date %s is after end date %s",
			ErrMalformedRecurrence,
			rem.StartDate.Format(models.DateFormat),
			rem.EndDate.Format(models.DateFormat))
	}

	if rem.RecurrenceMode == models.RecurWeekly && len(rem.RepeatWeekdays) == 0 {
		return fmt.Errorf("%w: weekly recurrence requires at least one weekday", ErrMalformedRecurrence)
	}

	if len(rem.Slots) == 0 {
		return fmt.Errorf("%w: reminder has no time slots", ErrMalformedRecurrence)
	}

	seen := make(map[models.SlotLabel]bool, len(rem.Slots))
	for _, slot := range rem.Slots {
		if !slot.Label.Valid() {
			return fmt.Errorf("%w: unknown slot label %q", ErrMalformedRecurrence, slot.Label)
		}
		if seen[slot.Label] {
			return fmt.Errorf("%w: duplicate slot label %q", ErrMalformedRecurrence, slot.Label)
		}
		seen[slot.Label] = true

		if _, err := time.Parse(models.ClockFormat, slot.ClockTime); err != nil {
			return fmt.Errorf("%w: invalid clock time %q for slot %s", ErrMalformedRecurrence, slot.ClockTime, slot.Label)
		}
		if slot.DosageAmount <= 0 {
			return fmt.Errorf("%w: dosage for slot %s must be positive", ErrMalformedRecurrence, slot.Label)
		}
	}

	return nil
}

// ValidateSlotLists rejects parallel slot-label and clock-time lists of
// different lengths. Clients historically sent the two lists separately and
// silent truncation hid real data loss, so mismatches fail loudly here.
func ValidateSlotLists(labels []string, times []string) error {
	if len(labels) != len(times) {
		return fmt.Errorf("%w: %d slot labels but %d clock times",
			ErrMalformedRecurrence, len(labels), len(times))
	}
	return nil
}
