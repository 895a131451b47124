// Package problem writes RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://eventeye.app/problems/"

// Problem type URIs.
const (
	TypeValidation   = typeBase + "validation-error"
	TypeNotFound     = typeBase + "not-found"
	TypeConflict     = typeBase + "conflict"
	TypeUnauthorized = typeBase + "unauthorized"
	TypeForbidden    = typeBase + "forbidden"
	TypeTooLarge     = typeBase + "payload-too-large"
	TypeUnavailable  = typeBase + "store-unavailable"
	TypeServerError  = typeBase + "server-error"
)

type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

// WithErrors attaches field-level errors.
func WithErrors(errs any) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// Write renders a problem document. The error text becomes the detail only
// in development and test; elsewhere the status text is used. Errors are
// logged through the request logger, 5xx at error level and 4xx at warn.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
