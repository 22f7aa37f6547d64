package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"timetrack/internal/platform/apperr"
)

type Error struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write json failed")
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailFields(w http.ResponseWriter, status int, code, message string, fields map[string][]string, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Fields: fields}, RequestID: requestID})
}

// StatusFor maps an outcome kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FailError writes a typed outcome with its status, code and fields. Any
// other error is logged and reported as internal_error without detail.
func FailError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	if appErr, ok := apperr.As(err); ok {
		FailFields(w, StatusFor(appErr.Kind), appErr.Code, appErr.Message, appErr.Fields, requestID)
		return
	}
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Info().Err(err).Str("requestId", requestID).Msg("request cancelled")
		Fail(w, http.StatusServiceUnavailable, "request_cancelled", "request was cancelled", requestID)
		return
	}
	log.Error().Err(err).
		Str("requestId", requestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
}
