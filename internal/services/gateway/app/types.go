package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

// ErrorCode è il codice macchina degli errori API.
type ErrorCode string

const (
	ErrorCodeInternal          ErrorCode = "internal_server_error"
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeBusy              ErrorCode = "busy"
	ErrorCodeInvalidTransition ErrorCode = "invalid_transition"
	ErrorCodeUnavailable       ErrorCode = "service_unavailable"
)

type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{Code: code, Message: message, Details: details, StatusCode: statusCode}
}

// toAPIError mappa gli errori di dominio sui codici HTTP.
func toAPIError(err error) APIError {
	var (
		ae APIError
		ve *model.ValidationError
		te *flow.TransitionError
		se *model.ServiceError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ve):
		return NewAPIError(ErrorCodeValidationFailed, "Invalid input.", ve.Fields, http.StatusBadRequest)
	case errors.Is(err, flow.ErrSessionNotFound):
		return NewAPIError(ErrorCodeNotFound, "Session not found.", nil, http.StatusNotFound)
	case errors.Is(err, flow.ErrBusy):
		return NewAPIError(ErrorCodeBusy, "A request is already in progress for this session.", nil, http.StatusConflict)
	case errors.As(err, &te):
		return NewAPIError(ErrorCodeInvalidTransition, te.Error(), map[string]string{
			"phase": string(te.From),
			"event": string(te.Event),
		}, http.StatusConflict)
	case errors.As(err, &se):
		return NewAPIError(ErrorCodeUnavailable, se.Error(), nil, http.StatusServiceUnavailable)
	}
	return NewAPIError(ErrorCodeInternal, "An internal error occurred", nil, http.StatusInternalServerError)
}

// ---------- Request / response payloads ----------

type CreateSessionRequest struct {
	Variant string `json:"variant"` // "direct" | "sensor"
	Token   string `json:"token,omitempty"`
}

type SessionResponse struct {
	ID    string            `json:"id"`
	State flow.SessionState `json:"state"`
}

type SensorRequest struct {
	Token string `json:"token"`
}

type SelectCropRequest struct {
	Crop string `json:"crop"`
}

type FavoriteRequest struct {
	UserID    string `json:"user_id,omitempty"`
	PlantName string `json:"plant_name"`
}

type GuideResponse struct {
	Text string `json:"text"`
}

func respondJSON(w http.ResponseWriter, status int, payload any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, err error, log *zap.Logger) {
	ae := toAPIError(err)
	if ae.StatusCode >= 500 {
		log.Error("request failed", zap.Error(err))
	}
	respondJSON(w, ae.StatusCode, ae, log)
}
