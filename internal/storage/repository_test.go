package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, id, email string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), User{
		ID:           id,
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func testSubscription(owner, id, due string) core.Subscription {
	return core.Subscription{
		ID:          id,
		OwnerID:     owner,
		Name:        "Netflix",
		Price:       core.Money{Cents: 999},
		Currency:    "USD",
		Category:    "Entertainment",
		Cycle:       core.Monthly,
		NextDueDate: due,
		Active:      true,
		CreatedAt:   time.Now(),
	}
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "u1", "a@example.com")

	u, err := repo.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("expected u1, got %s", u.ID)
	}

	if _, err := repo.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	live := Session{Token: "live", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	dead := Session{Token: "dead", UserID: "u1", ExpiresAt: time.Now().Add(-time.Hour)}
	for _, s := range []Session{live, dead} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	if got, err := repo.GetSession(ctx, "live"); err != nil || got.UserID != "u1" {
		t.Fatalf("live session: got %+v err %v", got, err)
	}
	if _, err := repo.GetSession(ctx, "dead"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session expected ErrNotFound, got %v", err)
	}
}

func TestSubscriptionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")
	seedUser(t, repo, "u2", "b@example.com")

	sub := testSubscription("u1", "s1", "2026-03-15")
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetSubscription(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Netflix" || got.Price.Cents != 999 || !got.Active {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Owner scoping: another account never sees the row
	if _, err := repo.GetSubscription(ctx, "u2", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner read expected ErrNotFound, got %v", err)
	}

	got.Name = "Netflix Premium"
	got.Active = false
	if err := repo.UpdateSubscription(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetSubscription(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.Name != "Netflix Premium" || updated.Active {
		t.Fatalf("update not applied: %+v", updated)
	}

	other := testSubscription("u2", "s1", "2026-03-15")
	if err := repo.UpdateSubscription(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner update expected ErrNotFound, got %v", err)
	}

	if err := repo.DeleteSubscription(ctx, "u1", "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetSubscription(ctx, "u1", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted row expected ErrNotFound, got %v", err)
	}
}

func TestListDueBetween(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	inactive := testSubscription("u1", "s-off", "2026-03-12")
	inactive.Active = false
	for _, s := range []core.Subscription{
		testSubscription("u1", "s-low", "2026-03-10"),  // lower bound, inclusive
		testSubscription("u1", "s-high", "2026-03-17"), // upper bound, inclusive
		testSubscription("u1", "s-before", "2026-03-09"),
		testSubscription("u1", "s-after", "2026-03-18"),
		inactive,
	} {
		if err := repo.CreateSubscription(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.ID, err)
		}
	}

	due, err := repo.ListDueBetween(ctx, "2026-03-10", "2026-03-17", time.Time{})
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due records, got %d: %+v", len(due), due)
	}
	if due[0].ID != "s-low" || due[1].ID != "s-high" {
		t.Fatalf("expected due-date order, got %s, %s", due[0].ID, due[1].ID)
	}
}

func TestListDueBetweenSkipsNotified(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	if err := repo.CreateSubscription(ctx, testSubscription("u1", "s1", "2026-03-12")); err != nil {
		t.Fatalf("create: %v", err)
	}

	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Zero cutoff: no dedup, record always listed
	due, err := repo.ListDueBetween(ctx, "2026-03-10", "2026-03-17", time.Time{})
	if err != nil || len(due) != 1 {
		t.Fatalf("expected 1 due record, got %d (err %v)", len(due), err)
	}

	if err := repo.MarkNotified(ctx, "s1", cutoff.Add(2*time.Hour)); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	due, err = repo.ListDueBetween(ctx, "2026-03-10", "2026-03-17", cutoff)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("record notified after cutoff should be skipped, got %d", len(due))
	}

	// A record notified before the cutoff is due again
	if err := repo.MarkNotified(ctx, "s1", cutoff.Add(-time.Hour)); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	due, err = repo.ListDueBetween(ctx, "2026-03-10", "2026-03-17", cutoff)
	if err != nil || len(due) != 1 {
		t.Fatalf("expected 1 due record, got %d (err %v)", len(due), err)
	}
}
