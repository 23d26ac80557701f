package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"medtracker/internal/auth"
	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/repository"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"` // "patient" (default) or "relative"
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    *UserResponse `json:"user,omitempty"`
	Token   string        `json:"token,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func userResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email.String,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// HandleLogin authenticates a user and issues a session token
func HandleLogin(db *database.DB, jwtManager *auth.JWTManager) http.HandlerFunc {
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "Username and password are required")
			return
		}

		ipAddress := getIPAddress(r)
		userAgent := r.Header.Get("User-Agent")

		user, err := userRepo.GetByUsername(req.Username)
		if err == repository.ErrNotFound {
			// Don't reveal that the user doesn't exist
			_ = auditRepo.LogWithDetails(
				sql.NullInt64{Valid: false},
				"login_failed",
				"user",
				sql.NullInt64{Valid: false},
				map[string]interface{}{"reason": "user_not_found", "username": req.Username},
				ipAddress,
				userAgent,
			)
			respondError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "An error occurred")
			return
		}

		if !user.IsActive {
			_ = auditRepo.LogWithDetails(
				sql.NullInt64{Int64: user.ID, Valid: true},
				"login_failed",
				"user",
				sql.NullInt64{Int64: user.ID, Valid: true},
				map[string]interface{}{"reason": "account_inactive"},
				ipAddress,
				userAgent,
			)
			respondError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
			_ = auditRepo.LogWithDetails(
				sql.NullInt64{Int64: user.ID, Valid: true},
				"login_failed",
				"user",
				sql.NullInt64{Int64: user.ID, Valid: true},
				map[string]interface{}{"reason": "invalid_password"},
				ipAddress,
				userAgent,
			)
			respondError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		token, err := jwtManager.GenerateToken(user.ID, user.Username, user.Role)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}

		_ = userRepo.UpdateLastLogin(user.ID)

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			Path:     "/",
			MaxAge:   int(jwtManager.SessionDuration().Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})

		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: user.ID, Valid: true},
			"login_success",
			"user",
			sql.NullInt64{Int64: user.ID, Valid: true},
			nil,
			ipAddress,
			userAgent,
		)

		respondJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Login successful",
			User:    userResponse(user),
			Token:   token,
		})
	}
}

// HandleRegister creates a new user account
func HandleRegister(db *database.DB) http.HandlerFunc {
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if len(req.Username) < 3 || len(req.Username) > 50 {
			respondError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
			return
		}

		if err := auth.ValidatePasswordStrength(req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		role := req.Role
		if role == "" {
			role = "patient"
		}
		if role != "patient" && role != "relative" {
			respondError(w, http.StatusBadRequest, "Role must be 'patient' or 'relative'")
			return
		}

		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		user := &models.User{
			Username:     req.Username,
			PasswordHash: passwordHash,
			Role:         role,
		}
		if req.Email != "" {
			user.Email = sql.NullString{String: req.Email, Valid: true}
		}

		if err := userRepo.Create(user); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				respondError(w, http.StatusConflict, "Username is already taken")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: user.ID, Valid: true},
			"user_registered",
			"user",
			sql.NullInt64{Int64: user.ID, Valid: true},
			map[string]interface{}{"role": role},
			getIPAddress(r),
			r.Header.Get("User-Agent"),
		)

		respondJSON(w, http.StatusCreated, AuthResponse{
			Success: true,
			Message: "Account created successfully",
			User:    userResponse(user),
		})
	}
}

// HandleLogout clears the session cookie
func HandleLogout(db *database.DB) http.HandlerFunc {
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})

		if userID != 0 {
			_ = auditRepo.LogWithDetails(
				sql.NullInt64{Int64: userID, Valid: true},
				"logout",
				"user",
				sql.NullInt64{Int64: userID, Valid: true},
				nil,
				getIPAddress(r),
				r.Header.Get("User-Agent"),
			)
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Logout successful",
		})
	}
}

// HandleDeactivateAccount deactivates the authenticated user's account and
// ends the session. Data stays in place; login is refused until the account
// is reactivated.
func HandleDeactivateAccount(db *database.DB) http.HandlerFunc {
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := userRepo.Deactivate(userID); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to deactivate account")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})

		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: userID, Valid: true},
			"account_deactivated",
			"user",
			sql.NullInt64{Int64: userID, Valid: true},
			nil,
			getIPAddress(r),
			r.Header.Get("User-Agent"),
		)

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Account deactivated",
		})
	}
}

// HandleGetCurrentUser returns the authenticated user's profile
func HandleGetCurrentUser(db *database.DB) http.HandlerFunc {
	userRepo := repository.NewUserRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := userRepo.GetByID(userID)
		if err == repository.ErrNotFound {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to load user")
			return
		}

		respondJSON(w, http.StatusOK, userResponse(user))
	}
}

// HandleRefreshToken issues a fresh session token from a valid or
// recently-expired one
func HandleRefreshToken(db *database.DB, jwtManager *auth.JWTManager) http.HandlerFunc {
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		token := getTokenFromRequest(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		newToken, err := jwtManager.RefreshToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Token cannot be refreshed")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    newToken,
			Path:     "/",
			MaxAge:   int(jwtManager.SessionDuration().Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})

		userID := middleware.GetUserID(r.Context())
		if userID != 0 {
			_ = auditRepo.LogWithDetails(
				sql.NullInt64{Int64: userID, Valid: true},
				"token_refreshed",
				"token",
				sql.NullInt64{Valid: false},
				nil,
				getIPAddress(r),
				r.Header.Get("User-Agent"),
			)
		}

		respondJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Token refreshed successfully",
			Token:   newToken,
		})
	}
}
