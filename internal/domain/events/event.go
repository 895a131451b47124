// Package events is the registry of events that certificates are issued for.
package events

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an event id does not resolve.
var ErrNotFound = errors.New("event not found")

type EventType string

const (
	EventTypeFree EventType = "free"
	EventTypePaid EventType = "paid"
)

// Event is stored under event:{id}. It is immutable once created.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Organizer   string    `json:"organizer"`
	EventType   EventType `json:"eventType"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
}

// Summary is an event annotated with how many certificates it has.
type Summary struct {
	Event
	CertificateCount int `json:"certificateCount"`
}

// CreateInput is the user-supplied part of a new event.
type CreateInput struct {
	Name        string `json:"name" validate:"notblank,nomarkup,max=200"`
	Description string `json:"description" validate:"notblank,nomarkup,max=5000"`
	Date        string `json:"date" validate:"notblank,nomarkup,max=64"`
	Organizer   string `json:"organizer" validate:"notblank,nomarkup,max=200"`
	EventType   string `json:"eventType" validate:"omitempty,oneof=free paid"`
	CreatedBy   string `json:"-"`
}
