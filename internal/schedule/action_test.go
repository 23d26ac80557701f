package schedule

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"medtracker/internal/models"
)

// memReminderSource is an in-memory ReminderSource.
type memReminderSource struct {
	reminders map[int64]*models.Reminder
}

func (s *memReminderSource) GetByID(id int64) (*models.Reminder, error) {
	rem, ok := s.reminders[id]
	if !ok {
		return nil, fmt.Errorf("reminder %d not found", id)
	}
	return rem, nil
}

type doseKey struct {
	reminderID int64
	date       string
	slot       models.SlotLabel
}

// memDoseStore is an in-memory DoseStore. Takes consume stock through an
// InventoryTracker the way the SQLite store does inside one transaction.
type memDoseStore struct {
	logs    map[doseKey]*models.DoseLog
	tracker *InventoryTracker
	takes   int
}

func newMemDoseStore(meds *memMedicationStore) *memDoseStore {
	return &memDoseStore{
		logs:    make(map[doseKey]*models.DoseLog),
		tracker: NewInventoryTracker(meds),
	}
}

func (s *memDoseStore) Get(reminderID int64, doseDate string, slot models.SlotLabel) (*models.DoseLog, error) {
	entry, ok := s.logs[doseKey{reminderID, doseDate, slot}]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (s *memDoseStore) RecordAction(entry *models.DoseLog) error {
	s.logs[doseKey{entry.ReminderID, entry.DoseDate, entry.SlotLabel}] = entry
	return nil
}

func (s *memDoseStore) RecordTake(entry *models.DoseLog, medicationID int64, dosage float64) error {
	if _, err := s.tracker.Consume(medicationID, dosage); err != nil {
		return err
	}
	s.takes++
	return s.RecordAction(entry)
}

func newTestProcessor(rem *models.Reminder, med *models.Medication) (*Processor, *memDoseStore, *memMedicationStore) {
	meds := newMemMedicationStore(med)
	doses := newMemDoseStore(meds)
	reminders := &memReminderSource{reminders: map[int64]*models.Reminder{rem.ID: rem}}
	return NewProcessor(reminders, doses, NewClassifier()), doses, meds
}

func testReminder() *models.Reminder {
	return &models.Reminder{
		ID:             1,
		MedicationID:   10,
		RecurrenceMode: models.RecurDaily,
		StartDate:      date(2026, time.March, 1),
		EndDate:        date(2026, time.March, 31),
		IsActive:       true,
		Slots: []models.TimeSlot{
			{Label: models.SlotMorning, ClockTime: "08:00", DosageAmount: 2},
			{Label: models.SlotEvening, ClockTime: "20:00", DosageAmount: 1},
		},
	}
}

func testMedication() *models.Medication {
	return &models.Medication{
		ID:                10,
		Name:              "amlodipine",
		TotalQuantity:     30,
		RemainingQuantity: 30,
		LowStockThreshold: 5,
	}
}

func TestProcessor_Take(t *testing.T) {
	proc, _, meds := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	occ, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 15))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if occ.Status != models.StatusOnTime {
		t.Errorf("status = %s, want on_time", occ.Status)
	}
	if occ.TakenAt == nil {
		t.Error("expected taken_at to be set")
	}

	// Stock decremented by the morning slot's dosage.
	med, _ := meds.GetByID(10)
	if med.RemainingQuantity != 28 {
		t.Errorf("remaining = %f, want 28", med.RemainingQuantity)
	}
}

func TestProcessor_TakeLate(t *testing.T) {
	proc, _, _ := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	occ, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 45))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if occ.Status != models.StatusLate {
		t.Errorf("status = %s, want late", occ.Status)
	}
}

func TestProcessor_DuplicateTakeDoesNotDoubleConsume(t *testing.T) {
	proc, doses, meds := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)
	now := at(2026, time.March, 5, 8, 15)

	first, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, now)
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}

	// Same tap again, and a later retry of the same action.
	for _, retry := range []time.Time{now, now.Add(2 * time.Minute)} {
		second, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, retry)
		if err != nil {
			t.Fatalf("repeated Apply failed: %v", err)
		}
		if second.Status != first.Status {
			t.Errorf("repeated take changed status from %s to %s", first.Status, second.Status)
		}
	}

	if doses.takes != 1 {
		t.Errorf("expected exactly 1 stock decrement, got %d", doses.takes)
	}
	med, _ := meds.GetByID(10)
	if med.RemainingQuantity != 28 {
		t.Errorf("remaining = %f, want 28 (no double consume)", med.RemainingQuantity)
	}
}

func TestProcessor_Skip(t *testing.T) {
	proc, _, meds := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	occ, err := proc.Apply(1, models.SlotEvening, day, models.ActionSkip, at(2026, time.March, 5, 21, 0))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if occ.Status != models.StatusSkipped {
		t.Errorf("status = %s, want skipped", occ.Status)
	}

	// Skipping never touches stock.
	med, _ := meds.GetByID(10)
	if med.RemainingQuantity != 30 {
		t.Errorf("remaining = %f, want 30", med.RemainingQuantity)
	}
}

func TestProcessor_SnoozeThenTake(t *testing.T) {
	proc, _, _ := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	occ, err := proc.Apply(1, models.SlotMorning, day, models.ActionSnooze, at(2026, time.March, 5, 8, 0))
	if err != nil {
		t.Fatalf("snooze failed: %v", err)
	}
	if occ.Status != models.StatusSnoozed {
		t.Errorf("status = %s, want snoozed", occ.Status)
	}
	if occ.SnoozedUntil == nil {
		t.Fatal("expected snoozed_until to be set")
	}
	wantUntil := at(2026, time.March, 5, 8, 10)
	if !occ.SnoozedUntil.Equal(wantUntil) {
		t.Errorf("snoozed_until = %s, want %s", occ.SnoozedUntil, wantUntil)
	}

	// A snoozed dose is not terminal; taking it afterwards works.
	occ, err = proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 25))
	if err != nil {
		t.Fatalf("take after snooze failed: %v", err)
	}
	if occ.Status != models.StatusOnTime {
		t.Errorf("status = %s, want on_time", occ.Status)
	}
}

func TestProcessor_ConflictingActionOnTerminalDose(t *testing.T) {
	proc, _, _ := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	if _, err := proc.Apply(1, models.SlotMorning, day, models.ActionSkip, at(2026, time.March, 5, 8, 5)); err != nil {
		t.Fatalf("skip failed: %v", err)
	}

	_, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 9, 0))
	if !errors.Is(err, ErrDoseFinal) {
		t.Errorf("expected ErrDoseFinal, got %v", err)
	}
}

func TestProcessor_StaleActionDoesNotOverwriteTerminal(t *testing.T) {
	proc, _, meds := newTestProcessor(testReminder(), testMedication())
	day := date(2026, time.March, 5)

	if _, err := proc.Apply(1, models.SlotMorning, day, models.ActionSkip, at(2026, time.March, 5, 9, 0)); err != nil {
		t.Fatalf("skip failed: %v", err)
	}

	// A delayed retry carrying an older timestamp arrives after the skip.
	occ, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 10))
	if err != nil {
		t.Fatalf("stale retry should be a no-op, got error: %v", err)
	}
	if occ.Status != models.StatusSkipped {
		t.Errorf("status = %s, want skipped (terminal state preserved)", occ.Status)
	}
	med, _ := meds.GetByID(10)
	if med.RemainingQuantity != 30 {
		t.Errorf("stale take consumed stock: remaining = %f, want 30", med.RemainingQuantity)
	}
}

func TestProcessor_InvalidOccurrences(t *testing.T) {
	rem := testReminder()
	proc, _, _ := newTestProcessor(rem, testMedication())
	now := at(2026, time.March, 5, 8, 0)

	tests := []struct {
		name       string
		reminderID int64
		slot       models.SlotLabel
		day        time.Time
		action     models.Action
	}{
		{"unknown reminder", 99, models.SlotMorning, date(2026, time.March, 5), models.ActionTake},
		{"date outside range", 1, models.SlotMorning, date(2026, time.April, 5), models.ActionTake},
		{"unknown slot", 1, models.SlotAfternoon, date(2026, time.March, 5), models.ActionTake},
		{"invalid action", 1, models.SlotMorning, date(2026, time.March, 5), "postpone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proc.Apply(tt.reminderID, tt.slot, tt.day, tt.action, now)
			if !errors.Is(err, ErrInvalidOccurrence) {
				t.Errorf("expected ErrInvalidOccurrence, got %v", err)
			}
		})
	}
}

func TestProcessor_DeactivatedReminderRejectsActions(t *testing.T) {
	rem := testReminder()
	proc, _, _ := newTestProcessor(rem, testMedication())
	day := date(2026, time.March, 5)

	// Deactivation between derivation and action application.
	rem.IsActive = false

	_, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 0))
	if !errors.Is(err, ErrInvalidOccurrence) {
		t.Errorf("expected ErrInvalidOccurrence for deactivated reminder, got %v", err)
	}
}

func TestProcessor_TakeClampsAtZeroStock(t *testing.T) {
	med := testMedication()
	med.RemainingQuantity = 1 // morning dosage is 2
	proc, _, meds := newTestProcessor(testReminder(), med)
	day := date(2026, time.March, 5)

	occ, err := proc.Apply(1, models.SlotMorning, day, models.ActionTake, at(2026, time.March, 5, 8, 0))
	if err != nil {
		t.Fatalf("take with insufficient stock must not fail: %v", err)
	}
	if occ.Status != models.StatusOnTime {
		t.Errorf("status = %s, want on_time", occ.Status)
	}

	stored, _ := meds.GetByID(10)
	if stored.RemainingQuantity != 0 {
		t.Errorf("remaining = %f, want 0 (clamped, not negative)", stored.RemainingQuantity)
	}
}
