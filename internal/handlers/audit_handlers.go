package handlers

import (
	"net/http"

	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/repository"
)

// HandleGetAuditLog returns the authenticated user's audit trail, newest
// first
func HandleGetAuditLog(db *database.DB) http.HandlerFunc {
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		limit, offset := parsePagination(r, 50, 200)
		logs, err := auditRepo.GetByUser(userID, limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve audit log")
			return
		}

		respondJSON(w, http.StatusOK, logs)
	}
}
