package handlers

import (
	"net/http"

	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/repository"
)

// HandleGetNotifications returns the user's notifications, newest first
func HandleGetNotifications(db *database.DB) http.HandlerFunc {
	notificationRepo := repository.NewNotificationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		unreadOnly := r.URL.Query().Get("unread_only") == "true"
		limit, offset := parsePagination(r, 50, 200)

		notifications, err := notificationRepo.ListByUser(userID, unreadOnly, limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve notifications")
			return
		}

		unread, err := notificationRepo.CountUnread(userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to count notifications")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"notifications": notifications,
			"unread_count":  unread,
		})
	}
}

// HandleMarkNotificationRead marks one notification as read
func HandleMarkNotificationRead(db *database.DB) http.HandlerFunc {
	notificationRepo := repository.NewNotificationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, err := parseIDParam(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid notification ID")
			return
		}

		err = notificationRepo.MarkRead(id, userID)
		if err == repository.ErrNotFound {
			respondError(w, http.StatusNotFound, "Notification not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to mark notification read")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// HandleMarkAllNotificationsRead marks all of the user's notifications read
func HandleMarkAllNotificationsRead(db *database.DB) http.HandlerFunc {
	notificationRepo := repository.NewNotificationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := notificationRepo.MarkAllRead(userID); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to mark notifications read")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}
