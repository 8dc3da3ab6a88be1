// Package gmail sends mail through the Gmail API using OAuth user
// credentials. Token bootstrap happens out of band via cmd/oauth-init.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"

	"subtrack/internal/mail"
)

type Sender struct {
	svc *gmailapi.Service
}

var _ mail.Sender = (*Sender)(nil)

// NewFromEnv creates a Gmail sender from environment variables.
// Client credentials: GMAIL_OAUTH_CLIENT_JSON or GMAIL_OAUTH_CLIENT_FILE.
// User token: GMAIL_OAUTH_TOKEN_JSON or GMAIL_OAUTH_TOKEN_FILE.
func NewFromEnv(ctx context.Context) (*Sender, error) {
	clientJSON, err := readEnvJSON("GMAIL_OAUTH_CLIENT_JSON", "GMAIL_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(clientJSON, gmailapi.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	tokenJSON, err := readEnvJSON("GMAIL_OAUTH_TOKEN_JSON", "GMAIL_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	httpClient := cfg.Client(ctx, &token)
	svc, err := gmailapi.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Sender{svc: svc}, nil
}

func readEnvJSON(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(os.Getenv(fileKey)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return b, nil
	}
	return nil, errors.New("set " + jsonKey + " or " + fileKey)
}

func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	raw := base64.URLEncoding.EncodeToString(EncodeRFC2822(msg))
	_, err := s.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}

// EncodeRFC2822 renders the message with the headers Gmail requires for a raw
// send. Exported for tests.
func EncodeRFC2822(msg mail.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
