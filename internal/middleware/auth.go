package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"kitchen-order-service/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	StaffID int64
	Email   string
	Name    string
	Role    auth.StaffRole
}

func (a *AuthContext) IsAdmin() bool {
	return a.Role == auth.RoleAdmin
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}

// StaffAuth verifies the bearer token and re-checks the staff allow-list row
// on every request, so a removed or deactivated account is locked out
// immediately rather than at token expiry.
func StaffAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			email := strings.TrimSpace(strings.ToLower(claims.Email))
			if email == "" {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			var (
				staffID  int64
				name     string
				role     string
				isActive bool
			)
			query := `
				select id, name, role, is_active
				from staff_users
				where lower(email) = $1
			`
			if err := db.QueryRow(r.Context(), query, email).Scan(&staffID, &name, &role, &isActive); err != nil {
				writeAuthError(w, http.StatusForbidden, "Staff access required")
				return
			}
			if !isActive {
				writeAuthError(w, http.StatusForbidden, "Staff account is disabled")
				return
			}

			authCtx := &AuthContext{
				StaffID: staffID,
				Email:   email,
				Name:    name,
				Role:    auth.StaffRole(role),
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// AdminOnly assumes StaffAuth already ran.
func AdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := GetAuthContext(r.Context())
			if !ok || !authCtx.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
