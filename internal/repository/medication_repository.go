package repository

import (
	"database/sql"
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
)

type MedicationRepository struct {
	db *database.DB
}

func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// Create creates a new medication. Remaining stock starts at the total.
func (r *MedicationRepository) Create(medication *models.Medication) error {
	query := `
		INSERT INTO medications (user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	result, err := r.db.Exec(query,
		medication.UserID,
		medication.Name,
		medication.Unit,
		medication.TotalQuantity,
		medication.RemainingQuantity,
		medication.LowStockThreshold,
		medication.Notes,
		medication.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	medication.ID = id
	return nil
}

// GetByID retrieves a medication by ID
func (r *MedicationRepository) GetByID(id int64) (*models.Medication, error) {
	query := `
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at
		FROM medications
		WHERE id = ?
	`
	var medication models.Medication
	err := r.db.QueryRow(query, id).Scan(
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
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}

	return &medication, nil
}

// Update updates a medication's descriptive fields. Stock counters change
// only through the inventory and dose log repositories.
func (r *MedicationRepository) Update(medication *models.Medication) error {
	query := `
		UPDATE medications
		SET name = ?, unit = ?, low_stock_threshold = ?, notes = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		medication.Name,
		medication.Unit,
		medication.LowStockThreshold,
		medication.Notes,
		medication.IsActive,
		medication.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
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

// Delete deletes a medication (soft delete by setting is_active to false)
func (r *MedicationRepository) Delete(id int64) error {
	query := `UPDATE medications SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return nil
}

// HardDelete permanently deletes a medication and its reminders
func (r *MedicationRepository) HardDelete(id int64) error {
	query := `DELETE FROM medications WHERE id = ?`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to hard delete medication: %w", err)
	}
	return nil
}

// ListByUser retrieves all medications belonging to a user
func (r *MedicationRepository) ListByUser(userID int64) ([]*models.Medication, error) {
	query := `
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at
		FROM medications
		WHERE user_id = ?
		ORDER BY name
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	return r.scanMedications(rows)
}

// ListActiveByUser retrieves a user's active medications
func (r *MedicationRepository) ListActiveByUser(userID int64) ([]*models.Medication, error) {
	query := `
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at
		FROM medications
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}
	defer rows.Close()

	return r.scanMedications(rows)
}

// ListLowStock retrieves active medications at or below their low stock
// threshold for a user
func (r *MedicationRepository) ListLowStock(userID int64) ([]*models.Medication, error) {
	query := `
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold, notes, is_active, created_at, updated_at
		FROM medications
		WHERE user_id = ? AND is_active = 1 AND remaining_quantity <= low_stock_threshold
		ORDER BY remaining_quantity ASC
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock medications: %w", err)
	}
	defer rows.Close()

	return r.scanMedications(rows)
}

// scanMedications is a helper to scan multiple medication rows
func (r *MedicationRepository) scanMedications(rows *sql.Rows) ([]*models.Medication, error) {
	var medications []*models.Medication
	for rows.Next() {
		var medication models.Medication
		err := rows.Scan(
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
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		medications = append(medications, &medication)
	}

	return medications, rows.Err()
}
