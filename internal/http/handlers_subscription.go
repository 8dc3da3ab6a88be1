package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/storage"
)

type subscriptionRequest struct {
	Name         string      `json:"name"`
	Price        json.Number `json:"price"`
	Currency     string      `json:"currency"`
	Category     string      `json:"category"`
	BillingCycle string      `json:"billing_cycle"`
	NextDueDate  string      `json:"next_due_date"`
	Active       *bool       `json:"is_active"`
}

type subscriptionResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Category     string  `json:"category,omitempty"`
	BillingCycle string  `json:"billing_cycle"`
	NextDueDate  string  `json:"next_due_date"`
	Active       bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
}

func toSubscriptionResponse(sub core.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:           sub.ID,
		Name:         sub.Name,
		Price:        sub.Price.Amount(),
		Currency:     sub.CurrencyOrDefault(),
		Category:     sub.Category,
		BillingCycle: string(sub.Cycle),
		NextDueDate:  sub.NextDueDate,
		Active:       sub.Active,
		CreatedAt:    sub.CreatedAt.Format(time.RFC3339),
	}
}

func (req subscriptionRequest) toSubscription(ownerID string) (core.Subscription, error) {
	cents, err := core.ParseDecimalToCents(req.Price.String())
	if err != nil {
		return core.Subscription{}, err
	}

	sub := core.Subscription{
		OwnerID:     ownerID,
		Name:        sanitizeInput(req.Name),
		Price:       core.Money{Cents: cents},
		Currency:    sanitizeInput(req.Currency),
		Category:    sanitizeInput(req.Category),
		Cycle:       core.BillingCycle(req.BillingCycle),
		NextDueDate: sanitizeInput(req.NextDueDate),
		Active:      true,
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	return sub, nil
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSubscriptions(w, r)
	case http.MethodPost:
		s.createSubscription(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	items, err := s.getSubscriptions(r.Context(), userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list subscriptions", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load subscriptions")
		return
	}

	out := make([]subscriptionResponse, 0, len(items))
	for _, sub := range items {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := req.toSubscription(userID(r))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid price")
		return
	}

	created, err := s.subs.Create(r.Context(), sub)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}

	s.invalidateSubscriptions(sub.OwnerID)
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(created))
}

func (s *Server) handleSubscriptionByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing subscription id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getSubscription(w, r, id)
	case http.MethodPut:
		s.updateSubscription(w, r, id)
	case http.MethodDelete:
		s.deleteSubscription(w, r, id)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	sub, err := s.store.GetSubscription(ctx, userID(r), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "subscription not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load subscription", "error", err, "subscription_id", id)
		writeJSONError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) updateSubscription(w http.ResponseWriter, r *http.Request, id string) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := req.toSubscription(userID(r))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid price")
		return
	}
	sub.ID = id

	if err := s.subs.Update(r.Context(), sub); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeValidationError(w, r, err)
		return
	}

	s.invalidateSubscriptions(sub.OwnerID)

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()
	stored, err := s.store.GetSubscription(ctx, sub.OwnerID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to reload subscription", "error", err, "subscription_id", id)
		writeJSONError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(stored))
}

func (s *Server) deleteSubscription(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.subs.Delete(r.Context(), userID(r), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "subscription not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete subscription", "error", err, "subscription_id", id)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	s.invalidateSubscriptions(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNameTooShort):
		writeJSONError(w, http.StatusBadRequest, "name must be at least 2 characters")
	case errors.Is(err, core.ErrInvalidAmount):
		writeJSONError(w, http.StatusBadRequest, "price must be zero or positive")
	case errors.Is(err, core.ErrInvalidCycle):
		writeJSONError(w, http.StatusBadRequest, "billing cycle must be monthly, yearly or one-time")
	case errors.Is(err, core.ErrInvalidDate):
		writeJSONError(w, http.StatusBadRequest, "next due date must be YYYY-MM-DD")
	default:
		slog.ErrorContext(r.Context(), "Failed to save subscription", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save subscription")
	}
}
