package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medtracker/internal/models"
)

var (
	// ErrInvalidOccurrence marks an action against a reminder-date-slot
	// triple that is not scheduled: unknown reminder, deactivated reminder,
	// date outside the recurrence, or unknown slot.
	ErrInvalidOccurrence = errors.New("invalid dose occurrence")

	// ErrDoseFinal marks a conflicting action against a dose that already
	// reached a terminal status for the day.
	ErrDoseFinal = errors.New("dose can no longer be updated")
)

// ReminderSource supplies the authoritative reminder record for an action.
type ReminderSource interface {
	GetByID(id int64) (*models.Reminder, error)
}

// DoseStore persists dose logs. Get returns (nil, nil) when no action has
// been recorded for the occurrence. RecordTake must write the dose log and
// the medication stock decrement atomically.
type DoseStore interface {
	Get(reminderID int64, doseDate string, slot models.SlotLabel) (*models.DoseLog, error)
	RecordAction(log *models.DoseLog) error
	RecordTake(log *models.DoseLog, medicationID int64, dosage float64) error
}

// Processor is the state-transition entry point for user actions on dose
// occurrences. It re-derives the occurrence from the current reminder state
// rather than trusting any client-cached copy.
type Processor struct {
	reminders ReminderSource
	doses     DoseStore
	cls       Classifier
}

func NewProcessor(reminders ReminderSource, doses DoseStore, cls Classifier) *Processor {
	return &Processor{
		reminders: reminders,
		doses:     doses,
		cls:       cls,
	}
}

// Apply records a take/skip/snooze action against the (reminderID, date,
// slot) occurrence observed at now, and returns the occurrence with its new
// status.
//
// Repeating an action against a terminal dose is a silent no-op returning
// the existing state, so repeated taps cannot double-consume inventory. A
// stale action (now not after the recorded action time) never overwrites a
// terminal state. A conflicting action on a terminal dose fails with
// ErrDoseFinal.
func (p *Processor) Apply(reminderID int64, slot models.SlotLabel, date time.Time, action models.Action, now time.Time) (*models.DoseOccurrence, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidOccurrence, action)
	}

	rem, err := p.reminders.GetByID(reminderID)
	if err != nil {
		return nil, fmt.Errorf("%w: reminder %d: %v", ErrInvalidOccurrence, reminderID, err)
	}
	if !IsActiveOn(rem, date) {
		return nil, fmt.Errorf("%w: reminder %d is not scheduled on %s",
			ErrInvalidOccurrence, reminderID, date.Format(models.DateFormat))
	}

	ts := rem.SlotByLabel(slot)
	if ts == nil {
		return nil, fmt.Errorf("%w: reminder %d has no %q slot", ErrInvalidOccurrence, reminderID, slot)
	}

	occ := occurrenceFor(rem, ts, date)
	scheduledAt, err := occ.ScheduledAt(date.Location())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scheduled time: %w", err)
	}

	existing, err := p.doses.Get(reminderID, occ.Date, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to load dose log: %w", err)
	}
	if existing != nil && p.cls.Classify(scheduledAt, now, existing).Terminal() {
		if !now.After(existing.ActedAt) || existing.Action == action {
			// Duplicate tap or stale retry: return the recorded state.
			if err := p.cls.Resolve(&occ, existing, now, date.Location()); err != nil {
				return nil, err
			}
			return &occ, nil
		}
		return nil, fmt.Errorf("%w: already %s", ErrDoseFinal, existing.Status)
	}

	entry := &models.DoseLog{
		ReminderID: reminderID,
		DoseDate:   occ.Date,
		SlotLabel:  slot,
		Action:     action,
		ActedAt:    now,
	}

	switch action {
	case models.ActionTake:
		entry.TakenAt = sql.NullTime{Time: now, Valid: true}
		entry.Status = p.cls.takeStatus(scheduledAt, now)
		if err := p.doses.RecordTake(entry, rem.MedicationID, ts.DosageAmount); err != nil {
			return nil, fmt.Errorf("failed to record take: %w", err)
		}
	case models.ActionSkip:
		entry.Status = models.StatusSkipped
		if err := p.doses.RecordAction(entry); err != nil {
			return nil, fmt.Errorf("failed to record skip: %w", err)
		}
	case models.ActionSnooze:
		entry.Status = models.StatusSnoozed
		entry.SnoozedUntil = sql.NullTime{Time: now.Add(p.cls.SnoozeDelay), Valid: true}
		if err := p.doses.RecordAction(entry); err != nil {
			return nil, fmt.Errorf("failed to record snooze: %w", err)
		}
	}

	if err := p.cls.Resolve(&occ, entry, now, date.Location()); err != nil {
		return nil, err
	}
	return &occ, nil
}
