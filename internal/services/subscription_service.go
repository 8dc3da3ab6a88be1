package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/storage"
)

// SubscriptionService orchestrates subscription writes across SQLite and AMQP.
// The store is the source of truth; change events are best-effort and a
// publish failure never fails the request.
type SubscriptionService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewSubscriptionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *SubscriptionService {
	return &SubscriptionService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Create validates and persists a new subscription, then publishes a created
// event. ID and CreatedAt are assigned here.
func (s *SubscriptionService) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now()

	if err := sub.Validate(); err != nil {
		return core.Subscription{}, fmt.Errorf("validate subscription: %w", err)
	}

	if err := s.storage.CreateSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	s.publishEvent(ctx, amqp.ActionCreated, sub)
	return sub, nil
}

// Update replaces the mutable fields of an owned subscription.
func (s *SubscriptionService) Update(ctx context.Context, sub core.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validate subscription: %w", err)
	}

	if err := s.storage.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	s.publishEvent(ctx, amqp.ActionUpdated, sub)
	return nil
}

// Delete physically removes an owned subscription.
func (s *SubscriptionService) Delete(ctx context.Context, ownerID, id string) error {
	sub, err := s.storage.GetSubscription(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteSubscription(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	s.publishEvent(ctx, amqp.ActionDeleted, sub)
	return nil
}

func (s *SubscriptionService) publishEvent(ctx context.Context, action string, sub core.Subscription) {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", "action", action)
		return
	}

	event := amqp.NewSubscriptionEvent(action, sub.ID, sub.OwnerID, sub.Name)
	if err := s.amqpClient.PublishSubscriptionEvent(ctx, event); err != nil {
		// Store write already succeeded; the event trail is best-effort
		slog.ErrorContext(ctx, "Failed to publish subscription event",
			"action", action,
			"subscription_id", sub.ID,
			"error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *SubscriptionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close subscription service: %v", errs)
	}

	return nil
}
