package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// ErrNoRecipients is returned for messages without a To address.
var ErrNoRecipients = errors.New("mail: no recipients")

// Message is a plain transactional email.
type Message struct {
	To       []mail.Address
	Subject  string
	Text     string
	HTML     string
	Category string
}

// Validate checks the message can be delivered.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range m.To {
		if strings.TrimSpace(to.Address) == "" {
			return ErrNoRecipients
		}
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("mail: empty body")
	}
	return nil
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. Used when no provider is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, to.Address)
	}
	m.logger.Info("mail suppressed",
		zap.Strings("to", recipients),
		zap.String("subject", msg.Subject),
		zap.String("category", msg.Category),
	)
	return nil
}
