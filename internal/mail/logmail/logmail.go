// Package logmail is a mail backend that writes messages to the log instead
// of delivering them. Default for development and tests.
package logmail

import (
	"context"

	"subtrack/internal/log"
	"subtrack/internal/mail"
)

type Sender struct {
	logger *log.Logger
}

var _ mail.Sender = (*Sender)(nil)

func New() *Sender {
	return &Sender{
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentMail),
	}
}

func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	s.logger.InfoContext(ctx, "Email (log backend, not delivered)",
		"from", msg.From,
		log.FieldRecipient, msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.HTML))
	return nil
}
