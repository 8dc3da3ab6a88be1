package gmail

import (
	"strings"
	"testing"

	"subtrack/internal/mail"
)

func TestEncodeRFC2822(t *testing.T) {
	raw := string(EncodeRFC2822(mail.Message{
		From:    "reminders@example.com",
		To:      "user@example.com",
		Subject: "Upcoming Subscription Payment: Netflix",
		HTML:    "<p>Due soon</p>",
	}))

	for _, want := range []string{
		"From: reminders@example.com\r\n",
		"To: user@example.com\r\n",
		"Subject: Upcoming Subscription Payment: Netflix\r\n",
		"Content-Type: text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in:\n%s", want, raw)
		}
	}

	headerEnd := strings.Index(raw, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatalf("missing blank line between headers and body")
	}
	if body := raw[headerEnd+4:]; body != "<p>Due soon</p>" {
		t.Fatalf("unexpected body %q", body)
	}
}
