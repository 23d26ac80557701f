package repository

import (
	"database/sql"
	"fmt"
	"time"

	"medtracker/internal/database"
	"medtracker/internal/models"
)

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create inserts a reminder and its slots in one transaction.
func (r *ReminderRepository) Create(reminder *models.Reminder) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reminders (user_id, medication_id, recurrence_mode, repeat_weekdays, start_date, end_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	result, err := tx.Exec(query,
		reminder.UserID,
		reminder.MedicationID,
		reminder.RecurrenceMode,
		models.WeekdaysToCSV(reminder.RepeatWeekdays),
		reminder.StartDate.Format(models.DateFormat),
		reminder.EndDate.Format(models.DateFormat),
		reminder.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := insertSlots(tx, id, reminder.Slots); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reminder: %w", err)
	}

	reminder.ID = id
	return nil
}

// Update rewrites the reminder and replaces its slot set in one transaction.
func (r *ReminderRepository) Update(reminder *models.Reminder) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE reminders
		SET medication_id = ?, recurrence_mode = ?, repeat_weekdays = ?, start_date = ?, end_date = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := tx.Exec(query,
		reminder.MedicationID,
		reminder.RecurrenceMode,
		models.WeekdaysToCSV(reminder.RepeatWeekdays),
		reminder.StartDate.Format(models.DateFormat),
		reminder.EndDate.Format(models.DateFormat),
		reminder.IsActive,
		reminder.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM reminder_slots WHERE reminder_id = ?`, reminder.ID); err != nil {
		return fmt.Errorf("failed to clear reminder slots: %w", err)
	}
	if err := insertSlots(tx, reminder.ID, reminder.Slots); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reminder update: %w", err)
	}

	return nil
}

func insertSlots(tx *sql.Tx, reminderID int64, slots []models.TimeSlot) error {
	query := `
		INSERT INTO reminder_slots (reminder_id, position, slot_label, clock_time, dosage_amount)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, slot := range slots {
		if _, err := tx.Exec(query, reminderID, i, slot.Label, slot.ClockTime, slot.DosageAmount); err != nil {
			return fmt.Errorf("failed to insert reminder slot %s: %w", slot.Label, err)
		}
	}
	return nil
}

// GetByID retrieves a reminder with its slots
func (r *ReminderRepository) GetByID(id int64) (*models.Reminder, error) {
	query := `
		SELECT id, user_id, medication_id, recurrence_mode, repeat_weekdays, start_date, end_date, is_active, created_at, updated_at
		FROM reminders
		WHERE id = ?
	`
	row := r.db.QueryRow(query, id)

	reminder, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	if err := r.loadSlots(reminder); err != nil {
		return nil, err
	}

	return reminder, nil
}

// Deactivate soft-deletes a reminder. Dose history stays intact.
func (r *ReminderRepository) Deactivate(id int64) error {
	query := `UPDATE reminders SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete permanently deletes a reminder, its slots and its dose logs
func (r *ReminderRepository) Delete(id int64) error {
	query := `DELETE FROM reminders WHERE id = ?`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByUser retrieves all reminders for a user with their slots
func (r *ReminderRepository) ListByUser(userID int64) ([]*models.Reminder, error) {
	query := `
		SELECT id, user_id, medication_id, recurrence_mode, repeat_weekdays, start_date, end_date, is_active, created_at, updated_at
		FROM reminders
		WHERE user_id = ?
		ORDER BY created_at
	`
	return r.list(query, userID)
}

// ListActiveByUser retrieves a user's active reminders with their slots
func (r *ReminderRepository) ListActiveByUser(userID int64) ([]*models.Reminder, error) {
	query := `
		SELECT id, user_id, medication_id, recurrence_mode, repeat_weekdays, start_date, end_date, is_active, created_at, updated_at
		FROM reminders
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at
	`
	return r.list(query, userID)
}

// ListActive retrieves every active reminder, for the background sweep
func (r *ReminderRepository) ListActive() ([]*models.Reminder, error) {
	query := `
		SELECT id, user_id, medication_id, recurrence_mode, repeat_weekdays, start_date, end_date, is_active, created_at, updated_at
		FROM reminders
		WHERE is_active = 1
		ORDER BY id
	`
	return r.list(query)
}

func (r *ReminderRepository) list(query string, args ...interface{}) ([]*models.Reminder, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, reminder := range reminders {
		if err := r.loadSlots(reminder); err != nil {
			return nil, err
		}
	}

	return reminders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func parseDate(s string) (time.Time, error) {
	// SQLite may hand back a full timestamp when the column was written by
	// an older client; keep only the calendar date.
	if len(s) > len(models.DateFormat) {
		s = s[:len(models.DateFormat)]
	}
	return time.ParseInLocation(models.DateFormat, s, time.Local)
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	var reminder models.Reminder
	var weekdays, startDate, endDate string
	err := row.Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.MedicationID,
		&reminder.RecurrenceMode,
		&weekdays,
		&startDate,
		&endDate,
		&reminder.IsActive,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	reminder.RepeatWeekdays = models.CSVToWeekdays(weekdays)
	if reminder.StartDate, err = parseDate(startDate); err != nil {
		return nil, fmt.Errorf("reminder %d has bad start date %q: %w", reminder.ID, startDate, err)
	}
	if reminder.EndDate, err = parseDate(endDate); err != nil {
		return nil, fmt.Errorf("reminder %d has bad end date %q: %w", reminder.ID, endDate, err)
	}

	return &reminder, nil
}

func (r *ReminderRepository) loadSlots(reminder *models.Reminder) error {
	query := `
		SELECT slot_label, clock_time, dosage_amount
		FROM reminder_slots
		WHERE reminder_id = ?
		ORDER BY position
	`
	rows, err := r.db.Query(query, reminder.ID)
	if err != nil {
		return fmt.Errorf("failed to load reminder slots: %w", err)
	}
	defer rows.Close()

	reminder.Slots = reminder.Slots[:0]
	for rows.Next() {
		var slot models.TimeSlot
		if err := rows.Scan(&slot.Label, &slot.ClockTime, &slot.DosageAmount); err != nil {
			return fmt.Errorf("failed to scan reminder slot: %w", err)
		}
		reminder.Slots = append(reminder.Slots, slot)
	}

	return rows.Err()
}
