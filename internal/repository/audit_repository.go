package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
)

type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) insert(entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, ip_address, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.Exec(
		query,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// LogWithDetails logs an action with structured details
func (r *AuditRepository) LogWithDetails(userID sql.NullInt64, action, entityType string, entityID sql.NullInt64, details map[string]interface{}, ipAddress, userAgent string) error {
	var detailsJSON sql.NullString
	if details != nil {
		jsonBytes, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(jsonBytes), Valid: true}
	}

	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  sql.NullString{String: ipAddress, Valid: ipAddress != ""},
		UserAgent:  sql.NullString{String: userAgent, Valid: userAgent != ""},
	}

	return r.insert(entry)
}

// GetByUser retrieves audit logs for a specific user
func (r *AuditRepository) GetByUser(userID int64, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, action, entity_type, entity_id, details, ip_address, user_agent, timestamp
		FROM audit_logs
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs by user: %w", err)
	}
	defer rows.Close()

	return r.scanAuditLogs(rows)
}

// scanAuditLogs scans rows into audit log structs
func (r *AuditRepository) scanAuditLogs(rows *sql.Rows) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.EntityType,
			&log.EntityID,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// DeleteOldLogs deletes audit logs older than the retention window. Called
// by the scheduler's daily maintenance pass.
func (r *AuditRepository) DeleteOldLogs(days int) (int64, error) {
	query := `
		DELETE FROM audit_logs
		WHERE timestamp < datetime('now', '-' || ? || ' days')
	`
	result, err := r.db.Exec(query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
