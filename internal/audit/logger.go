// Package audit records organizer actions and sign-in attempts as structured
// log entries under the "audit" key.
package audit

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one audited action. Actor is a user id, never an email.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes entries through zerolog. A nil *Logger discards them.
type Logger struct {
	output zerolog.Logger
}

func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{output: logger.With().Str("log_type", "audit").Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.output.Info().Interface("audit", entry).Msg(entry.Action)
}

// LogFromRequest fills the client address from r.RemoteAddr.
func (l *Logger) LogFromRequest(r *http.Request, actor, action, resourceType, resourceID, status string, details map[string]string) {
	if actor == "" {
		actor = "anonymous"
	}
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    remoteIP(r),
		Status:       status,
		Details:      details,
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
