package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/internal/auth"
	"kitchen-order-service/internal/middleware"
	"kitchen-order-service/pkg/response"
)

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(payload.Email))
	if email == "" || payload.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	var (
		staffID      int64
		name         string
		role         string
		passwordHash string
		isActive     bool
	)
	query := `
		select id, name, role, password_hash, is_active
		from staff_users
		where lower(email) = $1
	`
	if err := h.DB.QueryRow(ctx, query, email).Scan(&staffID, &name, &role, &passwordHash, &isActive); err != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "אימייל או סיסמה שגויים")
		return
	}
	if !isActive || !auth.CheckPassword(passwordHash, payload.Password) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "אימייל או סיסמה שגויים")
		return
	}

	expiry := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	token, err := auth.GenerateAccessToken(fmt.Sprintf("%d", staffID), email, name, auth.StaffRole(role), h.Config.JWTSecret, expiry)
	if err != nil {
		h.Logger.Error("token generation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	_, _ = h.DB.Exec(ctx, `update staff_users set last_login_at = now() where id = $1`, staffID)

	response.Success(w, map[string]any{
		"accessToken": token,
		"expiresIn":   h.Config.JWTExpirySeconds,
		"staff": map[string]any{
			"id":    staffID,
			"email": email,
			"name":  name,
			"role":  role,
		},
	})
}

func (h *Handler) AuthMe(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization token required")
		return
	}
	response.Success(w, map[string]any{
		"id":    authCtx.StaffID,
		"email": authCtx.Email,
		"name":  authCtx.Name,
		"role":  authCtx.Role,
	})
}
