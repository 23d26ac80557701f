package repository

import (
	"database/sql"
	"fmt"

	"medtracker/internal/database"
	"medtracker/internal/models"
)

var ErrNotFound = fmt.Errorf("not found")

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, email, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.Exec(query, user.Username, user.PasswordHash, user.Email, user.Role, user.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, email, role, is_active, created_at, last_login
		FROM users
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUsername retrieves a user by username, case-insensitively
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, email, role, is_active, created_at, last_login
		FROM users
		WHERE LOWER(username) = LOWER(?)
	`
	return r.scanOne(r.db.QueryRow(query, username))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateLastLogin updates the last login timestamp
func (r *UserRepository) UpdateLastLogin(id int64) error {
	query := `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE id = ?`
	_, err := r.db.Exec(query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a user by setting is_active to false
func (r *UserRepository) Deactivate(id int64) error {
	query := `UPDATE users SET is_active = 0 WHERE id = ?`
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return nil
}

// List retrieves all active users
func (r *UserRepository) List() ([]*models.User, error) {
	query := `
		SELECT id, username, password_hash, email, role, is_active, created_at, last_login
		FROM users
		WHERE is_active = 1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Email,
			&user.Role,
			&user.IsActive,
			&user.CreatedAt,
			&user.LastLogin,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}
