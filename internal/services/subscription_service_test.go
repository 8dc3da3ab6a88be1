package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/storage"
)

func newTestService(t *testing.T) (*SubscriptionService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	err = repo.CreateUser(context.Background(), storage.User{
		ID:        "u1",
		Email:     "a@example.com",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// nil AMQP client: events are skipped, storage writes still succeed
	return NewSubscriptionService(repo, nil), repo
}

func TestSubscriptionServiceCreate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, core.Subscription{
		OwnerID:     "u1",
		Name:        "Spotify",
		Price:       core.Money{Cents: 1099},
		Cycle:       core.Monthly,
		NextDueDate: "2026-04-01",
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected assigned ID")
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected assigned CreatedAt")
	}

	stored, err := repo.GetSubscription(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Name != "Spotify" {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestSubscriptionServiceCreateRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), core.Subscription{
		OwnerID:     "u1",
		Name:        "x", // below the 2-character minimum
		Price:       core.Money{Cents: 100},
		Cycle:       core.Monthly,
		NextDueDate: "2026-04-01",
		Active:      true,
	})
	if !errors.Is(err, core.ErrNameTooShort) {
		t.Fatalf("expected ErrNameTooShort, got %v", err)
	}
}

func TestSubscriptionServiceDeleteMissing(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Delete(context.Background(), "u1", "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriptionServiceCloseClosesStorage(t *testing.T) {
	svc, repo := newTestService(t)

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := repo.GetUserByID(context.Background(), "u1")
	if err == nil {
		t.Fatalf("expected query against closed storage to fail")
	}
}
