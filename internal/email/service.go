// Package email delivers certificate notifications through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

type Service struct {
	config       config.EmailConfig
	templates    *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
}

// CertificateData is rendered into templates/certificate.html.
type CertificateData struct {
	ParticipantName  string
	EventName        string
	EventDate        string
	Organizer        string
	VerificationCode string
	CertificateURL   string
	CurrentYear      int
}

// NewService parses the embedded templates. When email is disabled no client
// is created and every send is logged and skipped.
func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	svc := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if !cfg.Enabled {
		return svc, nil
	}

	if err := validateEmailAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender email in config: %w", err)
	}
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		return nil, fmt.Errorf("resend api key is required when email is enabled")
	}
	svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	return svc, nil
}

// CertificateIssued sends the certificate email for a committed certificate.
func (s *Service) CertificateIssued(ctx context.Context, cert certificates.Certificate, event events.Event) error {
	return s.SendCertificate(ctx, cert, event)
}

func (s *Service) SendCertificate(ctx context.Context, cert certificates.Certificate, event events.Event) error {
	if err := validateEmailAddress(cert.ParticipantEmail); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if err := validateLinkURL(cert.CertificateURL); err != nil {
		return fmt.Errorf("invalid certificate link: %w", err)
	}

	if !s.config.Enabled {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		s.logger.Info().Str("cert_id", cert.ID).Msg("email service disabled, skipping certificate email")
		s.logger.Debug().Str("cert_id", cert.ID).Str("to", cert.ParticipantEmail).Msg("skipped email recipient")
		return nil
	}

	htmlBody, err := s.renderTemplate("certificate.html", CertificateData{
		ParticipantName:  cert.ParticipantName,
		EventName:        event.Name,
		EventDate:        event.Date,
		Organizer:        event.Organizer,
		VerificationCode: cert.VerificationCode,
		CertificateURL:   cert.CertificateURL,
		CurrentYear:      time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render certificate template: %w", err)
	}

	msg := outgoing{
		to:      cert.ParticipantEmail,
		subject: "Your certificate for " + event.Name,
		html:    htmlBody,
		eventID: event.ID,
	}
	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("failed to send certificate email: %w", err)
	}

	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

// validateLinkURL only allows http(s) links with a host.
func validateLinkURL(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
