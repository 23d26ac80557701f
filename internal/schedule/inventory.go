package schedule

import (
	"fmt"
	"log"

	"medtracker/internal/models"
)

// MedicationStore is the slice of medication persistence the inventory
// tracker needs.
type MedicationStore interface {
	GetByID(id int64) (*models.Medication, error)
	UpdateStock(id int64, remaining, total float64) error
}

// InventoryTracker derives medication stock from confirmed doses and
// restocks. Running out of medicine is an expected state: consumption past
// zero clamps and logs, it never fails.
type InventoryTracker struct {
	meds MedicationStore
}

func NewInventoryTracker(meds MedicationStore) *InventoryTracker {
	return &InventoryTracker{meds: meds}
}

// Consume decrements the medication's remaining quantity by the dosage
// amount, clamped at zero, and returns the updated medication.
func (t *InventoryTracker) Consume(medicationID int64, amount float64) (*models.Medication, error) {
	med, err := t.meds.GetByID(medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication %d: %w", medicationID, err)
	}

	if med.RemainingQuantity < amount {
		log.Printf("medication %d (%s): dose of %.2f exceeds remaining %.2f, clamping to 0",
			med.ID, med.Name, amount, med.RemainingQuantity)
	}
	remaining := ClampQuantity(med.RemainingQuantity-amount, med.TotalQuantity)

	if err := t.meds.UpdateStock(med.ID, remaining, med.TotalQuantity); err != nil {
		return nil, fmt.Errorf("failed to update medication %d stock: %w", med.ID, err)
	}

	med.RemainingQuantity = remaining
	return med, nil
}

// Restock raises the medication's remaining quantity (and total, when the
// restock exceeds it) through the same entity consumption reads from, so the
// next Consume sees the updated stock.
func (t *InventoryTracker) Restock(medicationID int64, amount float64) (*models.Medication, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("restock amount must be positive, got %.2f", amount)
	}

	med, err := t.meds.GetByID(medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication %d: %w", medicationID, err)
	}

	remaining := med.RemainingQuantity + amount
	total := med.TotalQuantity
	if remaining > total {
		total = remaining
	}
	if err := t.meds.UpdateStock(med.ID, remaining, total); err != nil {
		return nil, fmt.Errorf("failed to update medication %d stock: %w", med.ID, err)
	}

	med.RemainingQuantity = remaining
	med.TotalQuantity = total
	return med, nil
}

// IsLowStock reports whether the medication's live remaining quantity is at
// or below its alert threshold. Always derived on demand; no persisted flag
// exists to drift from the quantities.
func IsLowStock(m *models.Medication) bool {
	return m.RemainingQuantity <= m.LowStockThreshold
}

// ClampQuantity bounds a quantity to [0, total].
func ClampQuantity(q, total float64) float64 {
	if q < 0 {
		return 0
	}
	if q > total {
		return total
	}
	return q
}
