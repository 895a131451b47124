package middleware

import (
	"net/http"
	"strings"

	"github.com/eventeye/server/internal/config"
	"github.com/rs/zerolog"
)

// CORS answers browser cross-origin checks. Credentials travel as bearer
// tokens, never cookies, so Allow-Credentials is not sent. Preflight
// requests from an allowed origin get 204 without reaching next.
func CORS(cfg config.CORSConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")

			if !cfg.AllowAllOrigins && !isOriginAllowed(origin, cfg.AllowedOrigins) {
				logger.Warn().
					Str("origin", origin).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("CORS request rejected: origin not in whitelist")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed performs a case-insensitive exact match.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	origin = strings.TrimSpace(origin)
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
