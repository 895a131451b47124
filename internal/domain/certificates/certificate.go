// Package certificates issues verifiable certificates to event participants.
//
// Every committed certificate owns a verification code that is unique across
// the whole store. Uniqueness is enforced by reserving code:{code} with
// SetIfAbsent before anything else is written, so two concurrent issuances
// can never both believe they own the same code.
package certificates

import (
	"errors"
	"time"

	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/validation"
)

var (
	// ErrCodeExhausted means no free verification code was found within the
	// configured number of attempts.
	ErrCodeExhausted = errors.New("verification code space exhausted")
	// ErrVerificationPending means the certificate was stored but its
	// verification record was not. The repair pass completes it.
	ErrVerificationPending = errors.New("certificate stored without verification record")
	// ErrIssuanceInProgress means another request holds the idempotency key
	// and has not stored its certificate yet. Retrying later is safe.
	ErrIssuanceInProgress = errors.New("issuance in progress for idempotency key")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusBounced   Status = "bounced"
)

// Certificate is stored under cert:{eventId}:{id}.
type Certificate struct {
	ID               string    `json:"id"`
	EventID          string    `json:"eventId"`
	ParticipantName  string    `json:"participantName"`
	ParticipantEmail string    `json:"participantEmail"`
	VerificationCode string    `json:"verificationCode"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	CertificateURL   string    `json:"certificateUrl"`
	IdempotencyKey   string    `json:"idempotencyKey,omitempty"`
}

// VerificationRecord is the public view of a certificate, stored under
// verify:{code}. It is derived once at issuance and never updated.
type VerificationRecord struct {
	CertID          string `json:"certId"`
	EventID         string `json:"eventId"`
	ParticipantName string `json:"participantName"`
	EventName       string `json:"eventName"`
	EventDate       string `json:"eventDate"`
	Organizer       string `json:"organizer"`
}

// NewVerificationRecord copies the public fields of cert and its event.
func NewVerificationRecord(cert Certificate, event events.Event) VerificationRecord {
	return VerificationRecord{
		CertID:          cert.ID,
		EventID:         event.ID,
		ParticipantName: cert.ParticipantName,
		EventName:       event.Name,
		EventDate:       event.Date,
		Organizer:       event.Organizer,
	}
}

// reservation is stored under code:{code} by the issuance that claimed it.
type reservation struct {
	CertID     string    `json:"certId"`
	EventID    string    `json:"eventId"`
	ReservedAt time.Time `json:"reservedAt"`
}

// idempotencyRecord binds a caller token to the certificate issued for it.
type idempotencyRecord struct {
	CertID    string    `json:"certId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant is one entry of an issuance request.
type Participant struct {
	Name           string `json:"name" validate:"notblank,nomarkup,max=200"`
	Email          string `json:"email" validate:"required,email,max=320"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,max=128,printascii"`
}

type OutcomeStatus string

const (
	OutcomeIssued    OutcomeStatus = "issued"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome reports what happened to one participant of a batch.
type Outcome struct {
	Index       int                `json:"index"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Status      OutcomeStatus      `json:"status"`
	Certificate *Certificate       `json:"certificate,omitempty"`
	Error       string             `json:"error,omitempty"`
	Errors      []validation.Error `json:"errors,omitempty"`

	err error
}

// Err is the underlying failure for rejected and failed outcomes.
func (o Outcome) Err() error { return o.err }

// BatchResult lists one outcome per participant, in request order.
type BatchResult struct {
	EventID    string    `json:"eventId"`
	Issued     int       `json:"issued"`
	Duplicates int       `json:"duplicates"`
	Rejected   int       `json:"rejected"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"results"`
}

// Certificates returns the certificates that exist after the batch, whether
// issued now or by an earlier request with the same idempotency key.
func (r BatchResult) Certificates() []Certificate {
	out := make([]Certificate, 0, r.Issued+r.Duplicates)
	for _, o := range r.Outcomes {
		if o.Status == OutcomeIssued || o.Status == OutcomeDuplicate {
			out = append(out, *o.Certificate)
		}
	}
	return out
}

// Complete reports whether every participant has a certificate.
func (r BatchResult) Complete() bool {
	return r.Rejected == 0 && r.Failed == 0
}

// Succeeded reports whether at least one participant has a certificate.
func (r BatchResult) Succeeded() bool {
	return r.Issued+r.Duplicates > 0
}

// FailedWith reports whether every failed outcome matches target.
func (r BatchResult) FailedWith(target error) bool {
	if r.Failed == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed && !errors.Is(o.err, target) {
			return false
		}
	}
	return true
}
