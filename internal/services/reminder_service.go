package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/core"
	"subtrack/internal/mail"
	"subtrack/internal/storage"
)

// ReminderStore is the slice of the repository the reminder pass needs.
type ReminderStore interface {
	ListDueBetween(ctx context.Context, from, to string, notifiedSince time.Time) ([]core.Subscription, error)
	GetUserByID(ctx context.Context, id string) (storage.User, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// ReminderOptions tunes a ReminderService.
type ReminderOptions struct {
	// WindowDays is K in [today, today+K]; both bounds inclusive.
	WindowDays int
	// From is the sender address on outgoing reminders.
	From string
	// DispatchLimit bounds concurrent sends.
	DispatchLimit int
	// TrackLastNotified turns on per-day dedup: records already notified
	// today are skipped and successful sends are stamped. Off by default to
	// preserve the resend-every-run behavior.
	TrackLastNotified bool
}

// ReminderResult summarizes one pass. Processed counts the records matched by
// the due-window query; Sent counts successful dispatches. Per-record
// failures reduce Sent but never fail the pass.
type ReminderResult struct {
	Processed int
	Sent      int
}

// ReminderService runs the scheduled reminder pass: compute the due window,
// query matching records, resolve owner emails and fan out one notification
// per record. There are no retries and no overlap guard; a pass triggered
// twice may send duplicates.
type ReminderService struct {
	store  ReminderStore
	sender mail.Sender
	opts   ReminderOptions
}

func NewReminderService(store ReminderStore, sender mail.Sender, opts ReminderOptions) *ReminderService {
	if opts.DispatchLimit < 1 {
		opts.DispatchLimit = 1
	}
	return &ReminderService{
		store:  store,
		sender: sender,
		opts:   opts,
	}
}

// Run executes a single pass for the window anchored at now. Only a failure
// of the due-window query itself is returned as an error; everything after
// that is per-record and isolated.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (ReminderResult, error) {
	today := now.Format(core.DateLayout)
	windowEnd := now.AddDate(0, 0, s.opts.WindowDays).Format(core.DateLayout)

	var notifiedSince time.Time
	if s.opts.TrackLastNotified {
		y, m, d := now.Date()
		notifiedSince = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	due, err := s.store.ListDueBetween(ctx, today, windowEnd, notifiedSince)
	if err != nil {
		return ReminderResult{}, fmt.Errorf("query due subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Reminder pass started",
		"window_start", today,
		"window_end", windowEnd,
		"due_count", len(due))

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.DispatchLimit)

	for _, sub := range due {
		g.Go(func() error {
			user, err := s.store.GetUserByID(gctx, sub.OwnerID)
			if err != nil || user.Email == "" {
				// Skip this record, keep the batch going
				slog.ErrorContext(gctx, "Could not resolve owner email",
					"subscription_id", sub.ID,
					"user_id", sub.OwnerID,
					"error", err)
				return nil
			}

			msg := s.buildMessage(user.Email, sub)
			if err := s.sender.Send(gctx, msg); err != nil {
				slog.ErrorContext(gctx, "Reminder dispatch failed",
					"subscription_id", sub.ID,
					"recipient", user.Email,
					"error", err)
				return nil
			}

			sent.Add(1)
			if s.opts.TrackLastNotified {
				if err := s.store.MarkNotified(gctx, sub.ID, now); err != nil {
					slog.ErrorContext(gctx, "Failed to stamp last notification",
						"subscription_id", sub.ID,
						"error", err)
				}
			}
			return nil
		})
	}
	// Workers only ever return nil; Wait is a join
	_ = g.Wait()

	result := ReminderResult{Processed: len(due), Sent: int(sent.Load())}
	slog.InfoContext(ctx, "Reminder pass complete",
		"processed", result.Processed,
		"sent", result.Sent)
	return result, nil
}

func (s *ReminderService) buildMessage(to string, sub core.Subscription) mail.Message {
	dueText := sub.NextDueDate
	if due, ok := sub.DueDate(); ok {
		dueText = due.Format("January 2, 2006")
	}
	return mail.Message{
		From:    s.opts.From,
		To:      to,
		Subject: "Upcoming Subscription Payment: " + sub.Name,
		HTML: fmt.Sprintf("<p>Reminder that your subscription for <strong>%s</strong> (%s %s) is due on %s.</p>",
			html.EscapeString(sub.Name), sub.Price.String(), sub.CurrencyOrDefault(), dueText),
	}
}
