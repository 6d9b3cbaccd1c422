package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fitness-accounts/internal/model"
)

// authenticator resolves a bearer access token into its user, rejecting
// tokens that are malformed, expired, orphaned by account deletion, or issued
// before the user's last password change.
type authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (model.AuthUser, error)
}

type contextKey string

const authUserContextKey contextKey = "auth_user"

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			writeUnauthorized(w, "Not authorized, no token.")
			return
		}

		user, err := m.auth.AuthenticateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrUserNotFound):
				writeUnauthorized(w, "User not found.")
			case errors.Is(err, model.ErrPasswordChanged):
				writeUnauthorized(w, "Password changed. Please log in again.")
			default:
				writeUnauthorized(w, "Not authorized, token failed.")
			}
			return
		}

		ctx := context.WithValue(r.Context(), authUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header,
// returning "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func UserFromContext(ctx context.Context) (model.AuthUser, bool) {
	user, ok := ctx.Value(authUserContextKey).(model.AuthUser)
	return user, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.MessageResponse{Message: message})
}
