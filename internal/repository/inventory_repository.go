package repository

import (
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
	"medtracker/internal/schedule"
)

type InventoryRepository struct {
	db *database.DB
}

func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Restock adds stock to a medication and records the change in one
// transaction. The quantity transition (including raising the total when the
// restock exceeds it) is the inventory tracker's.
func (r *InventoryRepository) Restock(medicationID int64, amount float64, performedBy int64) (*models.Medication, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	store := &txMedicationStore{tx: tx}
	before, err := store.GetByID(medicationID)
	if err != nil {
		return nil, err
	}

	med, err := schedule.NewInventoryTracker(store).Restock(medicationID, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO inventory_history (medication_id, change_amount, quantity_before, quantity_after, reason, performed_by, timestamp)
		VALUES (?, ?, ?, ?, 'restock', ?, CURRENT_TIMESTAMP)
	`, medicationID, amount, before.RemainingQuantity, med.RemainingQuantity, performedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to record inventory change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit restock: %w", err)
	}

	return r.loadMedication(medicationID)
}

// Adjust applies a manual stock correction (positive or negative), clamped
// to the medication's [0, total] range, and records it with the given notes.
// Used for corrections outside the dose flow: spilled doses, counts fixed
// after a manual audit.
func (r *InventoryRepository) Adjust(medicationID int64, change float64, performedBy int64, notes string) (*models.Medication, error) {
	if change == 0 {
		return nil, fmt.Errorf("adjustment change must be non-zero")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	store := &txMedicationStore{tx: tx}
	before, err := store.GetByID(medicationID)
	if err != nil {
		return nil, err
	}

	after := schedule.ClampQuantity(before.RemainingQuantity+change, before.TotalQuantity)
	if err := store.UpdateStock(medicationID, after, before.TotalQuantity); err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO inventory_history (medication_id, change_amount, quantity_before, quantity_after, reason, performed_by, timestamp, notes)
		VALUES (?, ?, ?, ?, 'adjustment', ?, CURRENT_TIMESTAMP, ?)
	`, medicationID, after-before.RemainingQuantity, before.RemainingQuantity, after, performedBy, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to record inventory change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}

	return r.loadMedication(medicationID)
}

func (r *InventoryRepository) loadMedication(medicationID int64) (*models.Medication, error) {
	var medication models.Medication
	err := r.db.QueryRow(`
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at
		FROM medications WHERE id = ?
	`, medicationID).Scan(
		&medication.ID,
		&medication.UserID,
		&medication.Name,
		&medication.Unit,
		&medication.TotalQuantity,
		&medication.RemainingQuantity,
		&medication.LowStockThreshold,
		&medication.Notes,
		&medication.IsActive,
		&medication.CreatedAt,
		&medication.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reload medication: %w", err)
	}

	return &medication, nil
}

// ListByMedication retrieves the stock change history for a medication,
// newest first
func (r *InventoryRepository) ListByMedication(medicationID int64, limit, offset int) ([]*models.InventoryHistory, error) {
	query := `
		SELECT id, medication_id, change_amount, quantity_before, quantity_after, reason, reference_id, performed_by, timestamp, notes
		FROM inventory_history
		WHERE medication_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Query(query, medicationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory history: %w", err)
	}
	defer rows.Close()

	var entries []*models.InventoryHistory
	for rows.Next() {
		var entry models.InventoryHistory
		err := rows.Scan(
			&entry.ID,
			&entry.MedicationID,
			&entry.ChangeAmount,
			&entry.QuantityBefore,
			&entry.QuantityAfter,
			&entry.Reason,
			&entry.ReferenceID,
			&entry.PerformedBy,
			&entry.Timestamp,
			&entry.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory history: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
