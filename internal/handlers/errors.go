package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"carecoins/internal/service"
	"carecoins/internal/validation"

	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, log logrus.FieldLogger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		entry := log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(logMsg)
		} else {
			entry.Debug(logMsg)
		}
	}

	respondWithJSON(w, status, errorBody{Error: userMsg})
}

// statusForError maps a service error to a status code and the message shown to the caller.
// Internal details of persistence failures are never returned.
func statusForError(err error) (int, string) {
	var vErr validation.ValidationError
	var malformed *service.MalformedRequestError
	var pErr *service.PersistenceError

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Message
	case errors.As(err, &malformed):
		return http.StatusBadRequest, ErrInvalidJSONBody
	case errors.Is(err, service.ErrNoFamily):
		return http.StatusBadRequest, ErrNoFamily
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, ErrUnauthorized
	case errors.Is(err, service.ErrIncorrectPIN):
		return http.StatusForbidden, ErrIncorrectPIN
	case errors.Is(err, service.ErrFamilyNotFound):
		return http.StatusNotFound, ErrFamilyNotFound
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, ErrProfileNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrRequestTimeout
	case errors.As(err, &pErr):
		return http.StatusInternalServerError, ErrInternalServerError
	default:
		return http.StatusInternalServerError, ErrInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, log logrus.FieldLogger, logMsg string, err error) {
	status, msg := statusForError(err)
	respondWithError(w, log, status, msg, logMsg, err)
}

// decodeJSON reads a JSON body into dst. Any failure is a MalformedRequestError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &service.MalformedRequestError{Err: err}
	}
	return nil
}
