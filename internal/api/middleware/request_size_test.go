package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// readAll answers 413 when the body limit trips and 200 otherwise.
func readAll(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			var tooLarge *http.MaxBytesError
			assert.True(t, errors.As(err, &tooLarge), "want *http.MaxBytesError, got %T", err)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func postBody(h http.Handler, size int) int {
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(bytes.Repeat([]byte("x"), size)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequestSize(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int64
		bodySize int
		want     int
	}{
		{"under limit", 1024, 512, http.StatusOK},
		{"exact limit", 1024, 1024, http.StatusOK},
		{"one byte over", 1024, 1025, http.StatusRequestEntityTooLarge},
		{"empty body", 1024, 0, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postBody(RequestSize(tt.maxBytes)(readAll(t)), tt.bodySize))
		})
	}
}

func TestPresetRequestSizes(t *testing.T) {
	public := PublicRequestSize()(readAll(t))
	issuance := IssuanceRequestSize()(readAll(t))

	assert.Equal(t, http.StatusOK, postBody(public, int(DefaultMaxBodySize)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, postBody(public, int(DefaultMaxBodySize)+1))

	// A batch too large for the public limit still fits the issuance limit.
	assert.Equal(t, http.StatusOK, postBody(issuance, int(DefaultMaxBodySize)*4))
	assert.Equal(t, http.StatusRequestEntityTooLarge, postBody(issuance, int(IssuanceMaxBodySize)+1))
}
