package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/internal/auth"
	"kitchen-order-service/internal/middleware"
	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type staffUser struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type createStaffPayload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type updateStaffPayload struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
	IsActive *bool   `json:"isActive"`
}

func (h *Handler) AdminStaffList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		select id, email, name, role, is_active, last_login_at, created_at
		from staff_users
		order by created_at asc
	`)
	if err != nil {
		h.Logger.Error("staff list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve staff")
		return
	}
	defer rows.Close()

	items := make([]staffUser, 0)
	for rows.Next() {
		var (
			s         staffUser
			lastLogin pgtype.Timestamptz
		)
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.Role, &s.IsActive, &lastLogin, &s.CreatedAt); err != nil {
			h.Logger.Error("staff scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve staff")
			return
		}
		s.LastLoginAt = timePtr(lastLogin)
		items = append(items, s)
	}

	response.Success(w, items)
}

func (h *Handler) AdminStaffCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createStaffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(payload.Email))
	name := strings.TrimSpace(payload.Name)
	role := strings.ToUpper(strings.TrimSpace(payload.Role))
	if email == "" || !strings.Contains(email, "@") {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A valid email is required")
		return
	}
	if role != string(auth.RoleAdmin) && role != string(auth.RoleStaff) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be ADMIN or STAFF")
		return
	}
	if len(payload.Password) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		h.Logger.Error("password hash failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create staff user")
		return
	}

	var created staffUser
	err = h.DB.QueryRow(ctx, `
		insert into staff_users (email, name, role, password_hash, is_active, created_at)
		values ($1, $2, $3, $4, true, now())
		returning id, email, name, role, is_active, created_at
	`, email, name, role, hash).Scan(&created.ID, &created.Email, &created.Name, &created.Role, &created.IsActive, &created.CreatedAt)
	if err != nil {
		response.Error(w, http.StatusConflict, "STAFF_EXISTS", "A staff user with this email already exists")
		return
	}

	response.Created(w, created)
}

func (h *Handler) AdminStaffUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	staffID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Staff ID is required")
		return
	}

	var payload updateStaffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if payload.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*payload.Role))
		if role != string(auth.RoleAdmin) && role != string(auth.RoleStaff) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be ADMIN or STAFF")
			return
		}
		*payload.Role = role
	}

	var passwordHash *string
	if payload.Password != nil {
		if len(*payload.Password) < 8 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(*payload.Password)
		if err != nil {
			h.Logger.Error("password hash failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff user")
			return
		}
		passwordHash = &hash
	}

	tag, err := h.DB.Exec(ctx, `
		update staff_users set
			name = coalesce($1, name),
			role = coalesce($2, role),
			password_hash = coalesce($3, password_hash),
			is_active = coalesce($4, is_active)
		where id = $5
	`, payload.Name, payload.Role, passwordHash, payload.IsActive, staffID)
	if err != nil {
		h.Logger.Error("staff update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff user")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Staff user not found")
		return
	}

	response.Success(w, map[string]any{"id": staffID})
}

func (h *Handler) AdminStaffDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	staffID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Staff ID is required")
		return
	}
	if authCtx != nil && authCtx.StaffID == staffID {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "You cannot delete your own account")
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from staff_users where id = $1`, staffID)
	if err != nil {
		h.Logger.Error("staff delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete staff user")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Staff user not found")
		return
	}

	response.Success(w, map[string]any{"id": staffID})
}
