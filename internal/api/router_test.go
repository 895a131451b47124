package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventeye/server/internal/auth"
	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/domain/stats"
	"github.com/eventeye/server/internal/domain/users"
	"github.com/eventeye/server/internal/domain/verification"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	tokens  *auth.JWTManager
	store   *kv.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.Store.Backend = config.BackendMemory
	cfg.Auth.JWTSecret = "router-test-secret-with-enough-entropy"
	cfg.RateLimit.LoginPer15Minutes = 100
	cfg.RateLimit.PublicPerMinute = 1000
	cfg.RateLimit.AuthenticatedPerMinute = 1000

	logger := zerolog.Nop()
	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	require.NoError(t, err)

	eventsService := events.NewService(store, logger)
	router := NewRouter(Dependencies{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Backend: config.BackendMemory,
		Events:  eventsService,
		Certificates: certificates.NewService(store, eventsService, certificates.Options{
			VerifyBaseURL: cfg.Certificates.VerifyBaseURL,
		}, logger),
		Verification: verification.NewService(store),
		Stats:        stats.NewService(store),
		Users:        users.NewService(store, logger),
		Tokens:       tokens,
		Version:      "test",
		StartTime:    time.Now(),
	})
	t.Cleanup(router.Close)

	return &testServer{handler: router.Handler, tokens: tokens, store: store}
}

func (s *testServer) anonToken(t *testing.T) string {
	t.Helper()
	token, err := s.tokens.Generate("anon", auth.RoleAnon, "")
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

// organizer signs up and logs in, returning the organizer token.
func (s *testServer) organizer(t *testing.T, name, email string) string {
	t.Helper()
	anon := s.anonToken(t)

	rec := s.do(t, http.MethodPost, "/signup", anon, map[string]string{
		"name": name, "email": email, "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", anon, map[string]string{
		"email": email, "password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token     string        `json:"token"`
		TokenType string        `json:"tokenType"`
		User      users.Profile `json:"user"`
	}
	decodeBody(t, rec, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, string(auth.RoleOrganizer), login.User.Role)
	return login.Token
}

func (s *testServer) createEvent(t *testing.T, token, name string) events.Event {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/events", token, map[string]string{
		"name":        name,
		"description": "An evening of talks",
		"date":        "2026-11-20",
		"organizer":   "Alice",
		"eventType":   "free",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Event events.Event `json:"event"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, "/events/"+created.Event.ID, rec.Header().Get("Location"))
	return created.Event
}

type generateBody struct {
	Success    bool                   `json:"success"`
	Generated  int                    `json:"generated"`
	Duplicates int                    `json:"duplicates"`
	Rejected   int                    `json:"rejected"`
	Failed     int                    `json:"failed"`
	Message    string                 `json:"message"`
	Results    []certificates.Outcome `json:"results"`
}

func TestIssueAndVerifyFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.organizer(t, "Alice", "alice@example.com")
	event := srv.createEvent(t, alice, "Go Night")

	rec := srv.do(t, http.MethodPost, "/generate-certificates", alice, map[string]any{
		"eventId": event.ID,
		"participants": []map[string]string{
			{"name": "Bob", "email": "bob@example.com"},
			{"name": "Carol", "email": "carol@example.com"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var generated generateBody
	decodeBody(t, rec, &generated)
	assert.True(t, generated.Success)
	assert.Equal(t, 2, generated.Generated)
	assert.Equal(t, "Generated 2 certificates", generated.Message)
	require.Len(t, generated.Results, 2)
	bobCode := generated.Results[0].Certificate.VerificationCode
	assert.True(t, certificates.IsVerificationCode(bobCode))
	assert.NotEqual(t, bobCode, generated.Results[1].Certificate.VerificationCode)

	rec = srv.do(t, http.MethodGet, "/certificates/"+event.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Certificates []certificates.Certificate `json:"certificates"`
	}
	decodeBody(t, rec, &listed)
	assert.Len(t, listed.Certificates, 2)

	rec = srv.do(t, http.MethodGet, "/verify/"+bobCode, srv.anonToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verified struct {
		Valid       bool                             `json:"valid"`
		Certificate certificates.VerificationRecord `json:"certificate"`
	}
	decodeBody(t, rec, &verified)
	assert.True(t, verified.Valid)
	assert.Equal(t, "Bob", verified.Certificate.ParticipantName)
	assert.Equal(t, "Go Night", verified.Certificate.EventName)
	assert.Equal(t, "Alice", verified.Certificate.Organizer)

	rec = srv.do(t, http.MethodGet, "/events/"+event.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Event events.Summary `json:"event"`
	}
	decodeBody(t, rec, &detail)
	assert.Equal(t, 2, detail.Event.CertificateCount)

	rec = srv.do(t, http.MethodGet, "/events", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Events []events.Summary `json:"events"`
		Stats  stats.Stats      `json:"stats"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Events, 1)
	assert.Equal(t, stats.Stats{TotalEvents: 1, TotalCertificates: 2, TotalDelivered: 2}, list.Stats)

	rec = srv.do(t, http.MethodGet, "/stats", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var totals stats.Stats
	decodeBody(t, rec, &totals)
	assert.Equal(t, 2, totals.TotalCertificates)
}

func TestVerifyUnknownCode(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/verify/ZZZZZZZZZZZZ", srv.anonToken(t), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())
}

func TestAuthorization(t *testing.T) {
	srv := newTestServer(t)
	anon := srv.anonToken(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"events without token", http.MethodGet, "/events", "", http.StatusUnauthorized},
		{"events with anon token", http.MethodGet, "/events", anon, http.StatusForbidden},
		{"generate with anon token", http.MethodPost, "/generate-certificates", anon, http.StatusForbidden},
		{"stats with garbage token", http.MethodGet, "/stats", "not-a-jwt", http.StatusUnauthorized},
		{"verify without token", http.MethodGet, "/verify/ABCDEFGHJKLM", "", http.StatusUnauthorized},
		{"login without token", http.MethodPost, "/login", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGenerateCertificatesStatuses(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.organizer(t, "Alice", "alice@example.com")
	event := srv.createEvent(t, alice, "Status Night")

	t.Run("unknown event", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/generate-certificates", alice, map[string]any{
			"eventId":      "missing",
			"participants": []map[string]string{{"name": "Bob", "email": "bob@example.com"}},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty participants", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/generate-certificates", alice, map[string]any{
			"eventId":      event.ID,
			"participants": []map[string]string{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("every participant rejected", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/generate-certificates", alice, map[string]any{
			"eventId":      event.ID,
			"participants": []map[string]string{{"name": "", "email": "nope"}},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body generateBody
		decodeBody(t, rec, &body)
		assert.False(t, body.Success)
		assert.Equal(t, 1, body.Rejected)
	})

	t.Run("mixed batch", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/generate-certificates", alice, map[string]any{
			"eventId": event.ID,
			"participants": []map[string]string{
				{"name": "Dave", "email": "dave@example.com"},
				{"name": "Eve", "email": "not-an-email"},
			},
		})
		require.Equal(t, http.StatusMultiStatus, rec.Code)
		var body generateBody
		decodeBody(t, rec, &body)
		assert.Equal(t, 1, body.Generated)
		assert.Equal(t, 1, body.Rejected)
		assert.Equal(t, certificates.OutcomeRejected, body.Results[1].Status)
	})

	t.Run("repeated idempotency key", func(t *testing.T) {
		payload := map[string]any{
			"eventId":      event.ID,
			"participants": []map[string]string{{"name": "Frank", "email": "frank@example.com", "idempotencyKey": "frank-1"}},
		}
		first := srv.do(t, http.MethodPost, "/generate-certificates", alice, payload)
		require.Equal(t, http.StatusOK, first.Code)
		second := srv.do(t, http.MethodPost, "/generate-certificates", alice, payload)
		require.Equal(t, http.StatusOK, second.Code)

		var a, b generateBody
		decodeBody(t, first, &a)
		decodeBody(t, second, &b)
		assert.Equal(t, 1, b.Duplicates)
		assert.Equal(t, a.Results[0].Certificate.ID, b.Results[0].Certificate.ID)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate-certificates", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+alice)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignupDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	srv.organizer(t, "Alice", "alice@example.com")

	rec := srv.do(t, http.MethodPost, "/signup", srv.anonToken(t), map[string]string{
		"name": "Alice Again", "email": "ALICE@example.com", "password": "another password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/login", srv.anonToken(t), map[string]string{
		"email": "alice@example.com", "password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/health", "/version", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	rec := srv.do(t, http.MethodPost, "/version", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}
