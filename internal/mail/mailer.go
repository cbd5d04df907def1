package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	gomail "github.com/wneessen/go-mail"
)

var ErrNoRecipients = errors.New("email has no recipients")

// DefaultAttachmentName is the file name recipients see for the PDF.
const DefaultAttachmentName = "relatorio_ncm.pdf"

// Config holds SMTP settings.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Attempts   uint
	RetryDelay time.Duration
}

// Message is one report email.
type Message struct {
	To             []string
	Subject        string
	HTML           string
	AttachmentPath string
	AttachmentName string
}

// Mailer sends messages over SMTP with STARTTLS and plain auth.
type Mailer struct {
	cfg  Config
	send func(ctx context.Context, msgs ...*gomail.Msg) error
}

// NewMailer configures the SMTP client. No connection is made until Send.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &Mailer{cfg: cfg, send: client.DialAndSendWithContext}, nil
}

// Compose builds the MIME message for msg.
func (m *Mailer) Compose(msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	gm := gomail.NewMsg()
	if err := gm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := gm.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if msg.AttachmentPath != "" {
		if _, err := os.Stat(msg.AttachmentPath); err != nil {
			return nil, fmt.Errorf("attachment not readable: %w", err)
		}
		name := msg.AttachmentName
		if name == "" {
			name = DefaultAttachmentName
		}
		gm.AttachFile(msg.AttachmentPath, gomail.WithFileName(name))
	}
	return gm, nil
}

// Send composes and delivers msg, retrying transient SMTP failures.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	gm, err := m.Compose(msg)
	if err != nil {
		return err
	}
	logCtx := slog.With("smtpHost", m.cfg.Host, "recipients", len(msg.To))

	err = retry.Do(
		func() error {
			return m.send(ctx, gm)
		},
		retry.Context(ctx),
		retry.Attempts(m.cfg.Attempts),
		retry.Delay(m.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logCtx.Warn("Email delivery failed, will retry.", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logCtx.Info("Email sent.")
	return nil
}
