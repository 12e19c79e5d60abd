package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"church-quiz-service/internal/domain"
	"github.com/rs/zerolog/log"
)

type errorPayload struct {
	Message string `json:"message"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrRegistrationLimitReached):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownUser), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateUser),
		errors.Is(err, domain.ErrInvalidAnswerState),
		errors.Is(err, domain.ErrGameNotStarted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor hides storage and unexpected error details from clients.
func messageFor(err error) string {
	switch statusFor(err) {
	case http.StatusServiceUnavailable:
		return domain.ErrStorageUnavailable.Error()
	case http.StatusInternalServerError:
		return "internal error"
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorPayload{Message: messageFor(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrValidation)
	}
	return nil
}
