package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fitness-accounts/internal/model"
	"fitness-accounts/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.MessageResponse{Message: message})
}

// writeError translates operation errors into an HTTP status and a generic
// client message. Store and connection failures never leak details; they are
// logged here and surface as a plain 500.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		writeMessage(w, apiErr.HTTPStatus, apiErr.Message)
		return
	}

	switch {
	case errors.Is(err, model.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.Is(err, model.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, "Email already in use.")
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrPasswordChanged), errors.Is(err, model.ErrSessionRevoked):
		writeMessage(w, http.StatusUnauthorized, "Not authorized, token failed.")
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}
