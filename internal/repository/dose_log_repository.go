package repository

import (
	"database/sql"
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
	"medtracker/internal/schedule"
)

type DoseLogRepository struct {
	db *database.DB
}

func NewDoseLogRepository(db *database.DB) *DoseLogRepository {
	return &DoseLogRepository{db: db}
}

// Get retrieves the dose log for one occurrence. Returns (nil, nil) when no
// action has been recorded yet.
func (r *DoseLogRepository) Get(reminderID int64, doseDate string, slot models.SlotLabel) (*models.DoseLog, error) {
	query := `
		SELECT id, reminder_id, dose_date, slot_label, action, status, acted_at, taken_at, snoozed_until, created_at, updated_at
		FROM dose_logs
		WHERE reminder_id = ? AND dose_date = ? AND slot_label = ?
	`
	var entry models.DoseLog
	err := r.db.QueryRow(query, reminderID, doseDate, slot).Scan(
		&entry.ID,
		&entry.ReminderID,
		&entry.DoseDate,
		&entry.SlotLabel,
		&entry.Action,
		&entry.Status,
		&entry.ActedAt,
		&entry.TakenAt,
		&entry.SnoozedUntil,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dose log: %w", err)
	}

	return &entry, nil
}

// RecordAction upserts the dose log for an occurrence. One row per
// (reminder, date, slot); a later action replaces the earlier one.
func (r *DoseLogRepository) RecordAction(entry *models.DoseLog) error {
	if err := r.upsert(r.db.DB, entry); err != nil {
		return err
	}
	return nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (r *DoseLogRepository) upsert(ex execer, entry *models.DoseLog) error {
	query := `
		INSERT INTO dose_logs (reminder_id, dose_date, slot_label, action, status, acted_at, taken_at, snoozed_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(reminder_id, dose_date, slot_label) DO UPDATE SET
			action = excluded.action,
			status = excluded.status,
			acted_at = excluded.acted_at,
			taken_at = excluded.taken_at,
			snoozed_until = excluded.snoozed_until,
			updated_at = CURRENT_TIMESTAMP
	`
	result, err := ex.Exec(query,
		entry.ReminderID,
		entry.DoseDate,
		entry.SlotLabel,
		entry.Action,
		entry.Status,
		entry.ActedAt,
		entry.TakenAt,
		entry.SnoozedUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to record dose action: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && id > 0 {
		entry.ID = id
	}
	return nil
}

// RecordTake writes the dose log and consumes the medication's stock in one
// transaction. The quantity transition goes through the inventory tracker
// over a tx-scoped store, so the clamp-at-zero rule lives in one place.
func (r *DoseLogRepository) RecordTake(entry *models.DoseLog, medicationID int64, dosage float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsert(tx, entry); err != nil {
		return err
	}

	store := &txMedicationStore{tx: tx}
	before, err := store.GetByID(medicationID)
	if err != nil {
		return err
	}

	med, err := schedule.NewInventoryTracker(store).Consume(medicationID, dosage)
	if err != nil {
		return fmt.Errorf("failed to consume stock: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO inventory_history (medication_id, change_amount, quantity_before, quantity_after, reason, reference_id, timestamp)
		VALUES (?, ?, ?, ?, 'dose_taken', ?, CURRENT_TIMESTAMP)
	`, medicationID, med.RemainingQuantity-before.RemainingQuantity, before.RemainingQuantity, med.RemainingQuantity, entry.ReminderID)
	if err != nil {
		return fmt.Errorf("failed to record inventory change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit take: %w", err)
	}

	return nil
}

// ListForUserOnDate retrieves all of a user's dose logs for one calendar date
func (r *DoseLogRepository) ListForUserOnDate(userID int64, doseDate string) ([]*models.DoseLog, error) {
	query := `
		SELECT d.id, d.reminder_id, d.dose_date, d.slot_label, d.action, d.status, d.acted_at, d.taken_at, d.snoozed_until, d.created_at, d.updated_at
		FROM dose_logs d
		JOIN reminders r ON r.id = d.reminder_id
		WHERE r.user_id = ? AND d.dose_date = ?
		ORDER BY d.reminder_id, d.slot_label
	`
	rows, err := r.db.Query(query, userID, doseDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list dose logs: %w", err)
	}
	defer rows.Close()

	return r.scanDoseLogs(rows)
}

// ListForUserInRange retrieves a user's dose logs across an inclusive date
// range, for adherence reporting and exports
func (r *DoseLogRepository) ListForUserInRange(userID int64, startDate, endDate string) ([]*models.DoseLog, error) {
	query := `
		SELECT d.id, d.reminder_id, d.dose_date, d.slot_label, d.action, d.status, d.acted_at, d.taken_at, d.snoozed_until, d.created_at, d.updated_at
		FROM dose_logs d
		JOIN reminders r ON r.id = d.reminder_id
		WHERE r.user_id = ? AND d.dose_date BETWEEN ? AND ?
		ORDER BY d.dose_date, d.reminder_id, d.slot_label
	`
	rows, err := r.db.Query(query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list dose logs by range: %w", err)
	}
	defer rows.Close()

	return r.scanDoseLogs(rows)
}

// CountByStatusInRange tallies a user's recorded dose statuses over an
// inclusive date range
func (r *DoseLogRepository) CountByStatusInRange(userID int64, startDate, endDate string) (map[models.Status]int64, error) {
	query := `
		SELECT d.status, COUNT(*)
		FROM dose_logs d
		JOIN reminders r ON r.id = d.reminder_id
		WHERE r.user_id = ? AND d.dose_date BETWEEN ? AND ?
		GROUP BY d.status
	`
	rows, err := r.db.Query(query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count dose statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var status models.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *DoseLogRepository) scanDoseLogs(rows *sql.Rows) ([]*models.DoseLog, error) {
	var entries []*models.DoseLog
	for rows.Next() {
		var entry models.DoseLog
		err := rows.Scan(
			&entry.ID,
			&entry.ReminderID,
			&entry.DoseDate,
			&entry.SlotLabel,
			&entry.Action,
			&entry.Status,
			&entry.ActedAt,
			&entry.TakenAt,
			&entry.SnoozedUntil,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dose log: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
