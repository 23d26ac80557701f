package repository

import (
	"database/sql"
	"fmt"

	"medtracker/internal/models"
)

// txMedicationStore scopes schedule.MedicationStore to one transaction, so
// the inventory tracker's quantity transitions run atomically with the dose
// log or history writes around them.
type txMedicationStore struct {
	tx *sql.Tx
}

func (s *txMedicationStore) GetByID(id int64) (*models.Medication, error) {
	var med models.Medication
	err := s.tx.QueryRow(`
		SELECT id, user_id, name, unit, total_quantity, remaining_quantity, low_stock_threshold
		FROM medications WHERE id = ?
	`, id).Scan(
		&med.ID,
		&med.UserID,
		&med.Name,
		&med.Unit,
		&med.TotalQuantity,
		&med.RemainingQuantity,
		&med.LowStockThreshold,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read medication stock: %w", err)
	}
	return &med, nil
}

func (s *txMedicationStore) UpdateStock(id int64, remaining, total float64) error {
	_, err := s.tx.Exec(`
		UPDATE medications
		SET remaining_quantity = ?, total_quantity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, remaining, total, id)
	if err != nil {
		return fmt.Errorf("failed to update medication stock: %w", err)
	}
	return nil
}
