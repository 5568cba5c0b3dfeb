package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"revenue-forecast/pkg/session"
	"revenue-forecast/pkg/snapshot"
)

// SuccessResponse enveloppe toutes les réponses 2xx.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorPayload décrit une erreur.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse enveloppe les réponses d'erreur.
type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Error: ErrorPayload{Code: code, Message: message}})
}

func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, snapshot.ErrInvalidSnapshot):
		return http.StatusBadRequest, "invalid_snapshot"
	case errors.Is(err, session.ErrNoData):
		return http.StatusConflict, "no_data"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeError(w, status, code, err.Error())
}
