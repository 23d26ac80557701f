package repository

import (
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
)

type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a new notification
func (r *NotificationRepository) Create(notification *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, is_read, reminder_id, dose_date, slot_label, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.Exec(query,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.ReminderID,
		notification.DoseDate,
		notification.SlotLabel,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// ExistsForOccurrence reports whether a notification of the given type was
// already created for a dose occurrence. Used to keep the sweep idempotent.
func (r *NotificationRepository) ExistsForOccurrence(notifType string, reminderID int64, doseDate string, slot models.SlotLabel) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE type = ? AND reminder_id = ? AND dose_date = ? AND slot_label = ?
	`
	var count int64
	if err := r.db.QueryRow(query, notifType, reminderID, doseDate, slot).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return count > 0, nil
}

// ExistsRecent reports whether a notification of the given type exists for a
// user within the last N hours, keyed by reminder. Used to avoid re-alerting
// low stock on every sweep.
func (r *NotificationRepository) ExistsRecent(userID int64, notifType, title string, hours int) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = ? AND type = ? AND title = ?
		AND created_at >= datetime('now', ? || ' hours')
	`
	var count int64
	if err := r.db.QueryRow(query, userID, notifType, title, fmt.Sprintf("-%d", hours)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent notifications: %w", err)
	}
	return count > 0, nil
}

// ListByUser retrieves notifications for a user, newest first
func (r *NotificationRepository) ListByUser(userID int64, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, is_read, reminder_id, dose_date, slot_label, created_at
		FROM notifications
		WHERE user_id = ?
	`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.IsRead,
			&n.ReminderID,
			&n.DoseDate,
			&n.SlotLabel,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkRead marks one notification as read
func (r *NotificationRepository) MarkRead(id, userID int64) error {
	query := `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`
	result, err := r.db.Exec(query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
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

// MarkAllRead marks all of a user's notifications as read
func (r *NotificationRepository) MarkAllRead(userID int64) error {
	query := `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`
	_, err := r.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// CountUnread counts a user's unread notifications
func (r *NotificationRepository) CountUnread(userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`
	var count int64
	if err := r.db.QueryRow(query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
