package worker

import (
	"context"
	"fmt"
	"html"

	"subtrack/internal/amqp"
	"subtrack/internal/log"
	"subtrack/internal/mail"
	"subtrack/internal/storage"
)

// NotifyWorker turns subscription change events into confirmation emails.
type NotifyWorker struct {
	storage *storage.SQLiteRepository
	sender  mail.Sender
	from    string
	logger  *log.Logger
}

func NewNotifyWorker(storage *storage.SQLiteRepository, sender mail.Sender, from string) *NotifyWorker {
	return &NotifyWorker{
		storage: storage,
		sender:  sender,
		from:    from,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single subscription change event from AMQP.
// Returning an error requeues the delivery, so owner-resolution failures for
// accounts that no longer exist are swallowed rather than retried forever.
func (w *NotifyWorker) HandleEvent(ctx context.Context, event *amqp.SubscriptionEvent) error {
	w.logger.InfoContext(ctx, "Processing subscription event",
		"action", event.Action,
		log.FieldSubID, event.ID)

	user, err := w.storage.GetUserByID(ctx, event.OwnerID)
	if err != nil || user.Email == "" {
		w.logger.WarnContext(ctx, "Skipping event, owner has no deliverable address",
			log.FieldSubID, event.ID,
			log.FieldUserID, event.OwnerID,
			log.FieldError, err)
		return nil
	}

	msg := w.buildMessage(user.Email, event)
	if err := w.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}

	w.logger.InfoContext(ctx, "Confirmation sent",
		"action", event.Action,
		log.FieldRecipient, user.Email)
	return nil
}

func (w *NotifyWorker) buildMessage(to string, event *amqp.SubscriptionEvent) mail.Message {
	name := html.EscapeString(event.Name)
	var subject, body string
	switch event.Action {
	case amqp.ActionCreated:
		subject = "Subscription added: " + event.Name
		body = fmt.Sprintf("<p>You are now tracking <strong>%s</strong>.</p>", name)
	case amqp.ActionDeleted:
		subject = "Subscription removed: " + event.Name
		body = fmt.Sprintf("<p><strong>%s</strong> has been removed from your tracked subscriptions.</p>", name)
	default:
		subject = "Subscription updated: " + event.Name
		body = fmt.Sprintf("<p>Your subscription <strong>%s</strong> was updated.</p>", name)
	}
	return mail.Message{
		From:    w.from,
		To:      to,
		Subject: subject,
		HTML:    body,
	}
}
