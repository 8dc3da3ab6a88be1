package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/mail"
	"subtrack/internal/storage"
)

type fakeReminderStore struct {
	mu sync.Mutex

	due      []core.Subscription
	listErr  error
	users    map[string]storage.User
	userErr  map[string]error
	notified []string

	gotFrom, gotTo string
	gotSince       time.Time
}

func (f *fakeReminderStore) ListDueBetween(ctx context.Context, from, to string, notifiedSince time.Time) ([]core.Subscription, error) {
	f.gotFrom, f.gotTo, f.gotSince = from, to, notifiedSince
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

func (f *fakeReminderStore) GetUserByID(ctx context.Context, id string) (storage.User, error) {
	if err := f.userErr[id]; err != nil {
		return storage.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeReminderStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, id)
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	failTo  map[string]error
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if err := f.failTo[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func dueRecord(id, owner, due string) core.Subscription {
	return core.Subscription{
		ID:          id,
		OwnerID:     owner,
		Name:        "Netflix",
		Price:       core.Money{Cents: 999},
		Currency:    "USD",
		Cycle:       core.Monthly,
		NextDueDate: due,
		Active:      true,
	}
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestReminderRunWindowBounds(t *testing.T) {
	store := &fakeReminderStore{users: map[string]storage.User{}}
	svc := NewReminderService(store, &fakeSender{}, ReminderOptions{WindowDays: 7, From: "r@x.com"})

	if _, err := svc.Run(context.Background(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.gotFrom != "2026-03-10" || store.gotTo != "2026-03-17" {
		t.Fatalf("window expected [2026-03-10, 2026-03-17], got [%s, %s]", store.gotFrom, store.gotTo)
	}
	if !store.gotSince.IsZero() {
		t.Fatalf("dedup cutoff must be zero when tracking is off")
	}
}

func TestReminderRunSkipsFailedOwnerLookup(t *testing.T) {
	store := &fakeReminderStore{
		due: []core.Subscription{
			dueRecord("s1", "u-missing", "2026-03-12"),
			dueRecord("s2", "u-ok", "2026-03-13"),
		},
		users:   map[string]storage.User{"u-ok": {ID: "u-ok", Email: "ok@example.com"}},
		userErr: map[string]error{"u-missing": errors.New("lookup failed")},
	}
	sender := &fakeSender{}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 7, From: "r@x.com", DispatchLimit: 4})

	result, err := svc.Run(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("run must not fail on per-record errors: %v", err)
	}
	if result.Processed != 2 {
		t.Fatalf("processed expected 2, got %d", result.Processed)
	}
	if result.Sent != 1 {
		t.Fatalf("sent expected 1, got %d", result.Sent)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "ok@example.com" {
		t.Fatalf("expected exactly one dispatch to ok@example.com, got %+v", sender.sent)
	}
}

func TestReminderRunSkipsEmptyEmail(t *testing.T) {
	store := &fakeReminderStore{
		due:   []core.Subscription{dueRecord("s1", "u1", "2026-03-12")},
		users: map[string]storage.User{"u1": {ID: "u1", Email: ""}},
	}
	sender := &fakeSender{}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 7, From: "r@x.com"})

	result, err := svc.Run(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Sent != 0 || len(sender.sent) != 0 {
		t.Fatalf("record without email must be skipped, got %+v", result)
	}
}

func TestReminderRunDispatchFailureIsolated(t *testing.T) {
	store := &fakeReminderStore{
		due: []core.Subscription{
			dueRecord("s1", "u1", "2026-03-12"),
			dueRecord("s2", "u2", "2026-03-13"),
		},
		users: map[string]storage.User{
			"u1": {ID: "u1", Email: "fail@example.com"},
			"u2": {ID: "u2", Email: "ok@example.com"},
		},
	}
	sender := &fakeSender{failTo: map[string]error{"fail@example.com": errors.New("smtp down")}}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 3, From: "r@x.com", DispatchLimit: 2})

	result, err := svc.Run(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("dispatch failure must not fail the pass: %v", err)
	}
	if result.Processed != 2 || result.Sent != 1 {
		t.Fatalf("expected processed=2 sent=1, got %+v", result)
	}
}

func TestReminderRunQueryFailure(t *testing.T) {
	store := &fakeReminderStore{listErr: errors.New("db gone")}
	sender := &fakeSender{}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 7, From: "r@x.com"})

	if _, err := svc.Run(context.Background(), fixedNow); err == nil {
		t.Fatalf("query failure must fail the pass")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no notifications may be sent after a query failure")
	}
}

func TestReminderRunTracksLastNotified(t *testing.T) {
	store := &fakeReminderStore{
		due:   []core.Subscription{dueRecord("s1", "u1", "2026-03-12")},
		users: map[string]storage.User{"u1": {ID: "u1", Email: "ok@example.com"}},
	}
	svc := NewReminderService(store, &fakeSender{}, ReminderOptions{
		WindowDays:        7,
		From:              "r@x.com",
		TrackLastNotified: true,
	})

	if _, err := svc.Run(context.Background(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantSince := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !store.gotSince.Equal(wantSince) {
		t.Fatalf("dedup cutoff expected %v, got %v", wantSince, store.gotSince)
	}
	if len(store.notified) != 1 || store.notified[0] != "s1" {
		t.Fatalf("expected s1 stamped, got %v", store.notified)
	}
}

func TestReminderMessageContent(t *testing.T) {
	store := &fakeReminderStore{
		due:   []core.Subscription{dueRecord("s1", "u1", "2026-03-15")},
		users: map[string]storage.User{"u1": {ID: "u1", Email: "ok@example.com"}},
	}
	sender := &fakeSender{}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 7, From: "reminders@subtrack.local"})

	if _, err := svc.Run(context.Background(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.Subject != "Upcoming Subscription Payment: Netflix" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.From != "reminders@subtrack.local" {
		t.Fatalf("unexpected from %q", msg.From)
	}
}

func TestReminderMessageEscapesName(t *testing.T) {
	rec := dueRecord("s1", "u1", "2026-03-15")
	rec.Name = `<img src=x onerror=alert(1)> & "friends"`
	store := &fakeReminderStore{
		due:   []core.Subscription{rec},
		users: map[string]storage.User{"u1": {ID: "u1", Email: "ok@example.com"}},
	}
	sender := &fakeSender{}
	svc := NewReminderService(store, sender, ReminderOptions{WindowDays: 7, From: "reminders@subtrack.local"})

	if _, err := svc.Run(context.Background(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	body := sender.sent[0].HTML
	if strings.Contains(body, "<img") {
		t.Fatalf("name markup not escaped: %q", body)
	}
	if !strings.Contains(body, "&lt;img") || !strings.Contains(body, "&amp;") {
		t.Fatalf("expected escaped name in body: %q", body)
	}
}
