package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize covers event, signup and login bodies.
	DefaultMaxBodySize int64 = 64 << 10 // 64KB

	// IssuanceMaxBodySize covers a full participant batch.
	IssuanceMaxBodySize int64 = 1 << 20 // 1MB
)

// RequestSize wraps the body in http.MaxBytesReader. Handlers see
// *http.MaxBytesError when the limit is exceeded and answer 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func PublicRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}

func IssuanceRequestSize() func(http.Handler) http.Handler {
	return RequestSize(IssuanceMaxBodySize)
}
