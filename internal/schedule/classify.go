package schedule

import (
	"time"

	"medtracker/internal/models"
)

const (
	// DefaultOnTimeWindow is how long after the scheduled clock time a take
	// still counts as on time. The boundary is inclusive: a dose taken
	// exactly 30 minutes after schedule is on time.
	DefaultOnTimeWindow = 30 * time.Minute

	// DefaultSnoozeDelay is how long a snoozed dose stays out of the way
	// before it is re-offered to the user.
	DefaultSnoozeDelay = 10 * time.Minute
)

// Classifier computes the lifecycle status of a dose occurrence from its
// scheduled time, the current time, and the last recorded user action.
type Classifier struct {
	OnTimeWindow time.Duration
	SnoozeDelay  time.Duration
}

// NewClassifier returns a classifier with the default windows.
func NewClassifier() Classifier {
	return Classifier{
		OnTimeWindow: DefaultOnTimeWindow,
		SnoozeDelay:  DefaultSnoozeDelay,
	}
}

// Classify returns the status of an occurrence scheduled at scheduledAt,
// observed at now, given the last persisted action (nil when unacted).
//
// Unacted occurrences stay pending until their calendar day has fully
// elapsed, then become missed. A snooze holds the snoozed status only for
// the snooze delay; after that the occurrence is re-evaluated as if no
// action had been taken.
func (c Classifier) Classify(scheduledAt, now time.Time, last *models.DoseLog) models.Status {
	if last != nil {
		switch last.Action {
		case models.ActionTake:
			takenAt := last.ActedAt
			if last.TakenAt.Valid {
				takenAt = last.TakenAt.Time
			}
			return c.takeStatus(scheduledAt, takenAt)
		case models.ActionSkip:
			return models.StatusSkipped
		case models.ActionSnooze:
			until := last.ActedAt.Add(c.SnoozeDelay)
			if last.SnoozedUntil.Valid {
				until = last.SnoozedUntil.Time
			}
			if now.Before(until) {
				return models.StatusSnoozed
			}
			// Delay elapsed with no take or skip: fall through to the
			// unacted rules.
		}
	}

	if !now.Before(EndOfDay(scheduledAt)) {
		return models.StatusMissed
	}
	return models.StatusPending
}

// takeStatus classifies a confirmed take by its distance from the scheduled
// clock time.
func (c Classifier) takeStatus(scheduledAt, takenAt time.Time) models.Status {
	if takenAt.Sub(scheduledAt) <= c.OnTimeWindow {
		return models.StatusOnTime
	}
	return models.StatusLate
}

// Resolve folds the persisted dose log (nil when unacted) into a freshly
// derived occurrence, so repeated derivations for the same date reproduce
// the same status instead of regressing to pending.
func (c Classifier) Resolve(occ *models.DoseOccurrence, last *models.DoseLog, now time.Time, loc *time.Location) error {
	scheduledAt, err := occ.ScheduledAt(loc)
	if err != nil {
		return err
	}

	occ.Status = c.Classify(scheduledAt, now, last)
	if last != nil && last.TakenAt.Valid {
		takenAt := last.TakenAt.Time
		occ.TakenAt = &takenAt
	}
	if occ.Status == models.StatusSnoozed && last != nil && last.SnoozedUntil.Valid {
		until := last.SnoozedUntil.Time
		occ.SnoozedUntil = &until
	}
	return nil
}
