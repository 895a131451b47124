package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eventeye/server/internal/domain/ids"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/validation"
	"github.com/rs/zerolog"
)

type Service struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store kv.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "events").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create trims and validates input, assigns a fresh id and persists the
// event. Text containing markup is rejected, never rewritten.
func (s *Service) Create(ctx context.Context, input CreateInput) (Event, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Date = strings.TrimSpace(input.Date)
	input.Organizer = strings.TrimSpace(input.Organizer)
	input.EventType = strings.ToLower(strings.TrimSpace(input.EventType))

	if err := validation.Struct(input); err != nil {
		return Event{}, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}

	eventType := EventType(input.EventType)
	if eventType == "" {
		eventType = EventTypeFree
	}

	event := Event{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Date:        input.Date,
		Organizer:   input.Organizer,
		EventType:   eventType,
		CreatedAt:   s.now(),
		CreatedBy:   input.CreatedBy,
	}

	if err := kv.SetJSON(ctx, s.store, kv.EventKey(id), event); err != nil {
		return Event{}, fmt.Errorf("store event: %w", err)
	}

	s.logger.Info().Str("event_id", id).Str("created_by", input.CreatedBy).Msg("event created")
	return event, nil
}

func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	if strings.TrimSpace(id) == "" {
		return Event{}, ErrNotFound
	}
	event, err := kv.GetJSON[Event](ctx, s.store, kv.EventKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("load event %s: %w", id, err)
	}
	return event, nil
}

// List returns every event, newest first, with its certificate count.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	items, err := kv.ScanJSON[Event](ctx, s.store, kv.EventPrefix)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	out := make([]Summary, 0, len(items))
	for _, event := range items {
		count, err := s.CertificateCount(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Event: event, CertificateCount: count})
	}
	return out, nil
}

func (s *Service) CertificateCount(ctx context.Context, id string) (int, error) {
	entries, err := s.store.GetByPrefix(ctx, kv.EventCertificatesPrefix(id))
	if err != nil {
		return 0, fmt.Errorf("count certificates for %s: %w", id, err)
	}
	return len(entries), nil
}
