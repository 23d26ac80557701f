package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/repository"
)

// CreateMedicationRequest represents the request body for creating a medication
type CreateMedicationRequest struct {
	Name              string   `json:"name"`
	Unit              string   `json:"unit"`
	TotalQuantity     float64  `json:"total_quantity"`
	RemainingQuantity *float64 `json:"remaining_quantity,omitempty"`
	LowStockThreshold float64  `json:"low_stock_threshold"`
	Notes             *string  `json:"notes,omitempty"`
}

// UpdateMedicationRequest represents the request body for updating a medication
type UpdateMedicationRequest struct {
	Name              *string  `json:"name,omitempty"`
	Unit              *string  `json:"unit,omitempty"`
	LowStockThreshold *float64 `json:"low_stock_threshold,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// RestockRequest represents the request body for restocking a medication
type RestockRequest struct {
	Amount float64 `json:"amount"`
}

// AdjustStockRequest represents the request body for a manual stock
// correction
type AdjustStockRequest struct {
	ChangeAmount float64 `json:"change_amount"`
	Notes        string  `json:"notes,omitempty"`
}

// getOwnedMedication loads a medication and checks it belongs to the user.
func getOwnedMedication(repo *repository.MedicationRepository, r *http.Request) (*models.Medication, int, string) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		return nil, http.StatusUnauthorized, "Unauthorized"
	}

	id, err := parseIDParam(r)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid medication ID"
	}

	med, err := repo.GetByID(id)
	if err == repository.ErrNotFound {
		return nil, http.StatusNotFound, "Medication not found"
	}
	if err != nil {
		return nil, http.StatusInternalServerError, "Failed to load medication"
	}
	if med.UserID != userID {
		// Don't reveal other users' medication IDs
		return nil, http.StatusNotFound, "Medication not found"
	}

	return med, 0, ""
}

// HandleGetMedications returns the user's medications
func HandleGetMedications(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var medications []*models.Medication
		var err error
		if r.URL.Query().Get("filter") == "active" {
			medications, err = medicationRepo.ListActiveByUser(userID)
		} else {
			medications, err = medicationRepo.ListByUser(userID)
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve medications")
			return
		}

		respondJSON(w, http.StatusOK, medications)
	}
}

// HandleGetMedication returns one medication
func HandleGetMedication(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}
		respondJSON(w, http.StatusOK, med)
	}
}

// HandleCreateMedication creates a new medication
func HandleCreateMedication(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req CreateMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "name is required")
			return
		}
		if !models.ValidUnit(req.Unit) {
			respondError(w, http.StatusBadRequest, "unit must be one of: tablet, bottle, tube, sachet")
			return
		}
		if req.TotalQuantity < 0 || req.LowStockThreshold < 0 {
			respondError(w, http.StatusBadRequest, "quantities cannot be negative")
			return
		}

		remaining := req.TotalQuantity
		if req.RemainingQuantity != nil {
			remaining = *req.RemainingQuantity
		}
		if remaining < 0 || remaining > req.TotalQuantity {
			respondError(w, http.StatusBadRequest, "remaining_quantity must be between 0 and total_quantity")
			return
		}

		med := &models.Medication{
			UserID:            userID,
			Name:              req.Name,
			Unit:              req.Unit,
			TotalQuantity:     req.TotalQuantity,
			RemainingQuantity: remaining,
			LowStockThreshold: req.LowStockThreshold,
			IsActive:          true,
		}
		if req.Notes != nil {
			med.Notes = sql.NullString{String: *req.Notes, Valid: true}
		}

		if err := medicationRepo.Create(med); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create medication")
			return
		}

		respondJSON(w, http.StatusCreated, med)
	}
}

// HandleUpdateMedication updates a medication's descriptive fields. Stock
// changes go through restock and dose actions instead.
func HandleUpdateMedication(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}

		var req UpdateMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(w, http.StatusBadRequest, "name cannot be empty")
				return
			}
			med.Name = name
		}
		if req.Unit != nil {
			if !models.ValidUnit(*req.Unit) {
				respondError(w, http.StatusBadRequest, "unit must be one of: tablet, bottle, tube, sachet")
				return
			}
			med.Unit = *req.Unit
		}
		if req.LowStockThreshold != nil {
			if *req.LowStockThreshold < 0 {
				respondError(w, http.StatusBadRequest, "low_stock_threshold cannot be negative")
				return
			}
			med.LowStockThreshold = *req.LowStockThreshold
		}
		if req.Notes != nil {
			med.Notes = sql.NullString{String: *req.Notes, Valid: *req.Notes != ""}
		}
		if req.IsActive != nil {
			med.IsActive = *req.IsActive
		}

		if err := medicationRepo.Update(med); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update medication")
			return
		}

		respondJSON(w, http.StatusOK, med)
	}
}

// HandleDeleteMedication soft-deletes a medication
func HandleDeleteMedication(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}

		if err := medicationRepo.Delete(med.ID); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete medication")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// HandleRestockMedication adds stock to a medication
func HandleRestockMedication(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}

		var req RestockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Amount <= 0 {
			respondError(w, http.StatusBadRequest, "amount must be positive")
			return
		}

		userID := middleware.GetUserID(r.Context())
		updated, err := inventoryRepo.Restock(med.ID, req.Amount, userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to restock medication")
			return
		}

		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: userID, Valid: true},
			"medication_restocked",
			"medication",
			sql.NullInt64{Int64: med.ID, Valid: true},
			map[string]interface{}{"amount": req.Amount, "remaining": updated.RemainingQuantity},
			getIPAddress(r),
			r.Header.Get("User-Agent"),
		)

		respondJSON(w, http.StatusOK, updated)
	}
}

// HandleAdjustMedicationStock applies a manual stock correction. Unlike
// restock the change can be negative; the result is clamped to the
// medication's valid range.
func HandleAdjustMedicationStock(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}

		var req AdjustStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ChangeAmount == 0 {
			respondError(w, http.StatusBadRequest, "change_amount must be non-zero")
			return
		}

		userID := middleware.GetUserID(r.Context())
		updated, err := inventoryRepo.Adjust(med.ID, req.ChangeAmount, userID, req.Notes)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to adjust medication stock")
			return
		}

		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: userID, Valid: true},
			"medication_stock_adjusted",
			"medication",
			sql.NullInt64{Int64: med.ID, Valid: true},
			map[string]interface{}{"change_amount": req.ChangeAmount, "remaining": updated.RemainingQuantity},
			getIPAddress(r),
			r.Header.Get("User-Agent"),
		)

		respondJSON(w, http.StatusOK, updated)
	}
}

// HandleGetStockAlerts returns active medications at or below their low
// stock threshold
func HandleGetStockAlerts(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		meds, err := medicationRepo.ListLowStock(userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve stock alerts")
			return
		}

		respondJSON(w, http.StatusOK, meds)
	}
}

// HandleGetInventoryHistory returns a medication's stock change history
func HandleGetInventoryHistory(db *database.DB) http.HandlerFunc {
	medicationRepo := repository.NewMedicationRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		med, status, msg := getOwnedMedication(medicationRepo, r)
		if med == nil {
			respondError(w, status, msg)
			return
		}

		limit, offset := parsePagination(r, 50, 200)
		history, err := inventoryRepo.ListByMedication(med.ID, limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve inventory history")
			return
		}

		respondJSON(w, http.StatusOK, history)
	}
}
