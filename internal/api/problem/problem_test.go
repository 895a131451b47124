package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/events/abc", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("boom"), "development")

	assert.Equal(t, "application/problem+json", res.Result().Header.Get("Content-Type"))

	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "boom", body.Detail)
	assert.Equal(t, "/events/abc", body.Instance)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, TypeValidation, body.Type)
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusServiceUnavailable, TypeUnavailable, "Store unavailable", errors.New("dial tcp 10.0.0.3:5432"), "production")

	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), body.Detail)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestWrite_Options(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/events", nil)
	res := httptest.NewRecorder()

	fields := []map[string]string{{"field": "name", "message": "is required"}}
	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("name: is required"), "production",
		WithDetail("name: is required"), WithInstance("/custom"), WithErrors(fields))

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "name: is required", body["detail"])
	assert.Equal(t, "/custom", body["instance"])
	assert.Len(t, body["errors"], 1)
}
