// Package mail defines the outbound email contract shared by the reminder
// job and the notify worker, plus backend selection.
package mail

import "context"

// Message is one outbound email. Body is HTML.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender dispatches a single message. Implementations report per-message
// success or failure and never retry; retry policy belongs to callers (and
// callers here deliberately have none).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
