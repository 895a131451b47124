package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

// RequestIDKey holds the correlation id of the current request.
const RequestIDKey contextKey = "request_id"

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// CorrelationID reuses a well-formed X-Request-ID from the caller or mints a
// UUID, echoes it on the response and derives a request-scoped logger from
// base that every later middleware and handler logs through.
func CorrelationID(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if !acceptableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			scoped := base.With().Str("request_id", id).Logger()
			ctx := scoped.WithContext(context.WithValue(r.Context(), RequestIDKey, id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// acceptableRequestID keeps caller ids short and printable so they cannot
// forge log lines.
func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// LoggerFromContext returns the request logger, or a no-op logger outside a
// request.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
