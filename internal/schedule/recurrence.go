package schedule

import (
	"time"

	"medtracker/internal/models"

	"github.com/teambition/rrule-go"
)

// IsActiveOn reports whether the reminder schedules any dose on the given
// calendar date. "Not active today" is a normal false, never an error:
// deactivated reminders, dates outside the range, and malformed ranges
// (start after end) all resolve to false. Range validation belongs to the
// CRUD layer, not here.
func IsActiveOn(rem *models.Reminder, date time.Time) bool {
	if !rem.IsActive {
		return false
	}

	day := Midnight(date)
	start := Midnight(rem.StartDate)
	end := Midnight(rem.EndDate)

	switch rem.RecurrenceMode {
	case models.RecurOnce:
		// End date is ignored by convention for one-time reminders.
		return day.Equal(start)
	case models.RecurDaily, models.RecurWeekly:
		if start.After(end) {
			return false
		}
		rule, err := recurrenceRule(rem)
		if err != nil {
			return false
		}
		return len(rule.Between(day, day.Add(24*time.Hour-time.Second), true)) > 0
	}
	return false
}

// recurrenceRule builds the RFC 5545 rule equivalent of the reminder's
// recurrence mode. Occurrences fall on midnight of each scheduled day.
func recurrenceRule(rem *models.Reminder) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart: Midnight(rem.StartDate),
		Until:   Midnight(rem.EndDate),
	}

	if rem.RecurrenceMode == models.RecurWeekly {
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = toRRuleWeekdays(rem.RepeatWeekdays)
	} else {
		opt.Freq = rrule.DAILY
	}

	return rrule.NewRRule(opt)
}

// NextOccurrenceDate returns the next date on or after the given date for
// which the reminder is active, or nil when the schedule has run out. The
// status endpoint reports it so clients can show when a reminder fires next.
func NextOccurrenceDate(rem *models.Reminder, from time.Time) *time.Time {
	if !rem.IsActive {
		return nil
	}

	day := Midnight(from)

	if rem.RecurrenceMode == models.RecurOnce {
		start := Midnight(rem.StartDate)
		if !start.Before(day) {
			return &start
		}
		return nil
	}

	if Midnight(rem.StartDate).After(Midnight(rem.EndDate)) {
		return nil
	}
	rule, err := recurrenceRule(rem)
	if err != nil {
		return nil
	}
	next := rule.After(day, true)
	if next.IsZero() {
		return nil
	}
	return &next
}

func toRRuleWeekdays(days []time.Weekday) []rrule.Weekday {
	mapped := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		switch d {
		case time.Monday:
			mapped = append(mapped, rrule.MO)
		case time.Tuesday:
			mapped = append(mapped, rrule.TU)
		case time.Wednesday:
			mapped = append(mapped, rrule.WE)
		case time.Thursday:
			mapped = append(mapped, rrule.TH)
		case time.Friday:
			mapped = append(mapped, rrule.FR)
		case time.Saturday:
			mapped = append(mapped, rrule.SA)
		case time.Sunday:
			mapped = append(mapped, rrule.SU)
		}
	}
	return mapped
}

// Midnight truncates a timestamp to the start of its calendar day, keeping
// the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the first instant after the timestamp's calendar day.
func EndOfDay(t time.Time) time.Time {
	return Midnight(t).Add(24 * time.Hour)
}
