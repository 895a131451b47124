// Package handlers implements the HTTP endpoints on top of the domain
// services.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/eventeye/server/internal/api/problem"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/validation"
)

var errEmptyBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads exactly one JSON value from the body. Fields the target
// does not declare are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env,
			problem.WithDetail(fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit)))
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid JSON body", err, env,
		problem.WithDetail(publicDecodeMessage(err)))
}

func publicDecodeMessage(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, errEmptyBody):
		return errEmptyBody.Error()
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("field %s has the wrong type", typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "request body is not valid JSON"
	}
}

// writeServiceError maps domain errors onto problem documents.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, env string) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithDetail(err.Error()), problem.WithErrors(validation.Fields(err)))
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, env,
			problem.WithDetail(events.ErrNotFound.Error()))
	case errors.Is(err, kv.ErrUnavailable):
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Store unavailable", err, env)
	case errors.Is(err, context.DeadlineExceeded):
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Request timed out", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}
