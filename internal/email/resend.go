package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// outgoing is one rendered message ready for the provider.
type outgoing struct {
	to      string
	subject string
	html    string
	eventID string
}

// deliver hands msg to Resend once. Rate limiting is reported with the
// provider's reset window so the job queue can back off.
func (s *Service) deliver(ctx context.Context, msg outgoing) error {
	if s.resendClient == nil {
		return errors.New("email client not initialized")
	}

	req := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{msg.to},
		Subject: msg.subject,
		Html:    msg.html,
		Tags:    []resend.Tag{{Name: "kind", Value: "certificate"}},
	}
	if msg.eventID != "" {
		req.Tags = append(req.Tags, resend.Tag{Name: "event_id", Value: msg.eventID})
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, req)
	var limited *resend.RateLimitError
	switch {
	case errors.As(err, &limited):
		s.logger.Warn().
			Str("limit", limited.Limit).
			Str("reset", limited.Reset).
			Msg("email provider rate limit reached")
		return fmt.Errorf("email rate limit reached, resets in %ss: %w", limited.Reset, err)
	case err != nil:
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().Str("email_id", sent.Id).Str("event_id", msg.eventID).Msg("certificate email accepted")
	return nil
}
