package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"fitness-accounts/internal/middleware"
	"fitness-accounts/internal/model"
	"fitness-accounts/internal/service"
	"fitness-accounts/pkg/apierror"
)

const refreshCookieName = "refreshToken"

type AccountHandler struct {
	service       *service.AccountService
	refreshTTL    time.Duration
	secureCookies bool
}

func NewAccountHandler(service *service.AccountService, refreshTTL time.Duration, secureCookies bool) *AccountHandler {
	return &AccountHandler{
		service:       service,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
	}
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "Invalid request body.", "", http.StatusBadRequest))
		return
	}

	sess, err := h.service.Signup(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeSession(w, sess)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "Invalid request body.", "", http.StatusBadRequest))
		return
	}

	sess, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeSession(w, sess)
}

// Logout is idempotent and never auth-gated: the cookie is always cleared and
// the call succeeds whether or not a valid bearer token came along. When one
// does, every session of that user is revoked.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		if user, err := h.service.AuthenticateToken(r.Context(), token); err == nil {
			if err := h.service.Logout(r.Context(), user.ID); err != nil {
				slog.Error("logout failed", "user_id", user.ID, "error", err)
				h.clearRefreshCookie(w)
				writeMessage(w, http.StatusInternalServerError, "Logout failed")
				return
			}
		}
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeMessage(w, http.StatusUnauthorized, "No refresh token provided.")
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RefreshResponse{AccessToken: accessToken})
}

func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token.")
		return
	}

	var payload model.UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "Invalid request body.", "", http.StatusBadRequest))
		return
	}

	if err := h.service.UpdatePassword(r.Context(), user.ID, payload); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Password updated successfully!")
}

func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token.")
		return
	}

	record, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ProfileResponse{
		Message: "User profile retrieved successfully.",
		User:    model.NewProfile(record),
	})
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token.")
		return
	}

	var payload model.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "Invalid request body.", "", http.StatusBadRequest))
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ProfileResponse{
		Message: "Profile updated successfully.",
		User:    model.NewProfile(updated),
	})
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token.")
		return
	}

	var payload model.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "Invalid request body.", "", http.StatusBadRequest))
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.ID, payload.CurrentPassword); err != nil {
		writeError(w, err)
		return
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Account deleted successfully.")
}

func (h *AccountHandler) writeSession(w http.ResponseWriter, sess service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    sess.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, model.SessionResponse{
		Status: "success",
		Token:  "Bearer " + sess.AccessToken,
		Data:   model.SessionData{User: sess.User},
	})
}

func (h *AccountHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
