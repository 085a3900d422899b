// Package mailer sends application emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/chat-applier/internal/logger"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	DefaultHost    = "smtp.gmail.com"
	DefaultPort    = 587
	defaultTimeout = 30 * time.Second

	fallbackMIME = "application/octet-stream"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From    string
	Timeout time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer delivers plain-text messages with optional attachments.
type Mailer struct {
	client sender
	from   string
	logger *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Mailer, error) {
	if strings.TrimSpace(cfg.Username) == "" || cfg.Password == "" {
		return nil, errors.New("smtp username and password are required")
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}

	return &Mailer{client: client, from: from, logger: logger.OrNop(log)}, nil
}

// Send delivers one message to a single recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, body string, attachments []records.Document) error {
	msg, err := m.message(to, subject, body, attachments)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject), zap.Int("attachments", len(attachments)))
	return nil
}

func (m *Mailer) message(to, subject, body string, attachments []records.Document) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)

	for _, doc := range attachments {
		if len(doc.Data) == 0 {
			continue
		}
		name := doc.Filename
		if strings.TrimSpace(name) == "" {
			name = "attachment"
		}
		contentType := doc.MIME
		if !strings.Contains(contentType, "/") {
			contentType = fallbackMIME
		}
		err := msg.AttachReader(name, bytes.NewReader(doc.Data), mail.WithFileContentType(mail.ContentType(contentType)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
	}

	return msg, nil
}
