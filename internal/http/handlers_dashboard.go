package http

import (
	"log/slog"
	"net/http"
	"time"

	"subtrack/internal/core"
)

type summaryResponse struct {
	PrimaryCurrency string  `json:"primary_currency"`
	MonthlyTotal    float64 `json:"monthly_total"`
	AnnualTotal     float64 `json:"annual_total"`
	DueThisWeek     int     `json:"due_this_week"`
	ExcludedCount   int     `json:"excluded_count"`
	Count           int     `json:"count"`
}

type categoryResponse struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := s.getSubscriptions(r.Context(), userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load dashboard data", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	summary := core.Normalize(items)
	writeJSON(w, http.StatusOK, summaryResponse{
		PrimaryCurrency: summary.PrimaryCurrency,
		MonthlyTotal:    summary.MonthlyTotal.Amount(),
		AnnualTotal:     summary.AnnualTotal.Amount(),
		DueThisWeek:     core.DueWithinWeek(items, time.Now()),
		ExcludedCount:   summary.ExcludedCount,
		Count:           len(summary.Records),
	})
}

func (s *Server) handleDashboardCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := s.getSubscriptions(r.Context(), userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load dashboard data", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	granularity := core.GranularityMonthly
	if r.URL.Query().Get("granularity") == "yearly" {
		granularity = core.GranularityYearly
	}

	buckets := core.ByCategory(items, granularity)
	out := make([]categoryResponse, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, categoryResponse{Category: bucket.Category, Amount: bucket.Amount.Amount()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDashboardUpcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := s.getSubscriptions(r.Context(), userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load dashboard data", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	out := make([]subscriptionResponse, 0, core.UpcomingLimit)
	for _, sub := range core.Upcoming(items, time.Now()) {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}
