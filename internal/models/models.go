package models

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar-date layout used for reminder ranges and dose
// occurrence identity. Dates carry no time component.
const DateFormat = "2006-01-02"

// ClockFormat is the 24h wall-clock layout stored on reminder slots.
const ClockFormat = "15:04"

// User represents a system user. Relatives share visibility into a patient's
// schedule but the ownership model is per-user.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	Email        sql.NullString `json:"-"`
	Role         string         `json:"role"` // "patient" or "relative"
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	LastLogin    sql.NullTime   `json:"-"`
}

// Medication represents a tracked medication with its stock counters.
// RemainingQuantity is mutated only through dose consumption and restocking,
// and is clamped to [0, TotalQuantity].
type Medication struct {
	ID                int64          `json:"id"`
	UserID            int64          `json:"user_id"`
	Name              string         `json:"name"`
	Unit              string         `json:"unit"` // tablet, bottle, tube, sachet
	TotalQuantity     float64        `json:"total_quantity"`
	RemainingQuantity float64        `json:"remaining_quantity"`
	LowStockThreshold float64        `json:"low_stock_threshold"`
	Notes             sql.NullString `json:"-"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DisplayUnit returns a human-readable unit label.
func (m *Medication) DisplayUnit() string {
	switch m.Unit {
	case "tablet":
		return "tablet(s)"
	case "bottle":
		return "bottle(s)"
	case "tube":
		return "tube(s)"
	case "sachet":
		return "sachet(s)"
	}
	return m.Unit
}

// ValidUnit reports whether the dosage unit is one of the supported kinds.
func ValidUnit(unit string) bool {
	switch unit {
	case "tablet", "bottle", "tube", "sachet":
		return true
	}
	return false
}

// RecurrenceMode describes how a reminder repeats over its date range.
type RecurrenceMode string

const (
	RecurDaily  RecurrenceMode = "daily"
	RecurWeekly RecurrenceMode = "weekly"
	RecurOnce   RecurrenceMode = "once"
)

// Valid reports whether the mode is one of the supported kinds.
func (m RecurrenceMode) Valid() bool {
	switch m {
	case RecurDaily, RecurWeekly, RecurOnce:
		return true
	}
	return false
}

// SlotLabel names a period of day at which a dose is scheduled.
type SlotLabel string

const (
	SlotMorning   SlotLabel = "morning"
	SlotAfternoon SlotLabel = "afternoon"
	SlotEvening   SlotLabel = "evening"
)

// Valid reports whether the label is one of the supported slots.
func (l SlotLabel) Valid() bool {
	switch l {
	case SlotMorning, SlotAfternoon, SlotEvening:
		return true
	}
	return false
}

// TimeSlot is one named dose slot on a reminder.
type TimeSlot struct {
	Label        SlotLabel `json:"label"`
	ClockTime    string    `json:"clock_time"` // HH:MM, 24h
	DosageAmount float64   `json:"dosage_amount"`
}

// Reminder is a recurring or one-time instruction to take a medication at
// specific daily time slots over a date range. Start and end dates are
// inclusive calendar dates.
type Reminder struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	MedicationID   int64          `json:"medication_id"`
	RecurrenceMode RecurrenceMode `json:"recurrence_mode"`
	RepeatWeekdays []time.Weekday `json:"repeat_weekdays"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	Slots          []TimeSlot     `json:"slots"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SlotByLabel returns the reminder's slot with the given label, or nil.
func (r *Reminder) SlotByLabel(label SlotLabel) *TimeSlot {
	for i := range r.Slots {
		if r.Slots[i].Label == label {
			return &r.Slots[i]
		}
	}
	return nil
}

// WeekdaysToCSV serializes a weekday set as comma-separated integers
// (Sunday=0), the form stored in the reminders table.
func WeekdaysToCSV(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// CSVToWeekdays parses the stored weekday set. Unparseable entries are
// dropped.
func CSVToWeekdays(csv string) []time.Weekday {
	if csv == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}

// Status is the lifecycle state of one dose occurrence.
type Status string

const (
	StatusPending Status = "pending"
	StatusOnTime  Status = "on_time"
	StatusLate    Status = "late"
	StatusSkipped Status = "skipped"
	StatusSnoozed Status = "snoozed"
	StatusMissed  Status = "missed"
)

// Valid reports whether the status is one of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOnTime, StatusLate, StatusSkipped, StatusSnoozed, StatusMissed:
		return true
	}
	return false
}

// Terminal reports whether the status ends the occurrence's lifecycle for
// the day. Missed is not terminal in this sense: it is re-derived from
// elapsed time, never written by a user action.
func (s Status) Terminal() bool {
	switch s {
	case StatusOnTime, StatusLate, StatusSkipped:
		return true
	}
	return false
}

// Action is a user decision against one dose occurrence.
type Action string

const (
	ActionTake   Action = "take"
	ActionSkip   Action = "skip"
	ActionSnooze Action = "snooze"
)

// Valid reports whether the action is one of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionTake, ActionSkip, ActionSnooze:
		return true
	}
	return false
}

// DoseLog is the persisted record of the last user action on one dose
// occurrence. Identity is (ReminderID, DoseDate, SlotLabel).
type DoseLog struct {
	ID           int64        `json:"id"`
	ReminderID   int64        `json:"reminder_id"`
	DoseDate     string       `json:"dose_date"` // YYYY-MM-DD
	SlotLabel    SlotLabel    `json:"slot_label"`
	Action       Action       `json:"action"`
	Status       Status       `json:"status"`
	ActedAt      time.Time    `json:"acted_at"`
	TakenAt      sql.NullTime `json:"-"`
	SnoozedUntil sql.NullTime `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DoseOccurrence is one concrete instance of a reminder's time slot on one
// calendar date. It is derived per query, never persisted; identity is the
// (ReminderID, Date, SlotLabel) tuple so clients and the server reconcile on
// it rather than on array positions.
type DoseOccurrence struct {
	ReminderID   int64      `json:"reminder_id"`
	MedicationID int64      `json:"medication_id"`
	Date         string     `json:"date"` // YYYY-MM-DD
	SlotLabel    SlotLabel  `json:"slot_label"`
	ClockTime    string     `json:"clock_time"`
	DosageAmount float64    `json:"dosage_amount"`
	Status       Status     `json:"status"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}

// ScheduledAt resolves the occurrence's full timestamp in the given location.
func (o *DoseOccurrence) ScheduledAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateFormat, o.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := time.Parse(ClockFormat, o.ClockTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// InventoryHistory records one stock change on a medication.
type InventoryHistory struct {
	ID             int64          `json:"id"`
	MedicationID   int64          `json:"medication_id"`
	ChangeAmount   float64        `json:"change_amount"`
	QuantityBefore float64        `json:"quantity_before"`
	QuantityAfter  float64        `json:"quantity_after"`
	Reason         string         `json:"reason"`
	ReferenceID    sql.NullInt64  `json:"-"`
	PerformedBy    sql.NullInt64  `json:"-"`
	Timestamp      time.Time      `json:"timestamp"`
	Notes          sql.NullString `json:"-"`
}

// Notification represents a user notification.
type Notification struct {
	ID         int64          `json:"id"`
	UserID     sql.NullInt64  `json:"-"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	IsRead     bool           `json:"is_read"`
	ReminderID sql.NullInt64  `json:"-"`
	DoseDate   sql.NullString `json:"-"`
	SlotLabel  sql.NullString `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditLog represents an audit log entry.
type AuditLog struct {
	ID         int64          `json:"id"`
	UserID     sql.NullInt64  `json:"-"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   sql.NullInt64  `json:"-"`
	Details    sql.NullString `json:"-"`
	IPAddress  sql.NullString `json:"-"`
	UserAgent  sql.NullString `json:"-"`
	Timestamp  time.Time      `json:"timestamp"`
}
