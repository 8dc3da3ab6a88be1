package core

import "testing"

func sub(price int64, cycle BillingCycle, currency string) Subscription {
	return Subscription{
		OwnerID:     "u1",
		Name:        "sub",
		Price:       Money{Cents: price},
		Currency:    currency,
		Cycle:       cycle,
		NextDueDate: "2026-01-01",
		Active:      true,
	}
}

func TestNormalizeEmpty(t *testing.T) {
	got := Normalize(nil)
	if got.PrimaryCurrency != "USD" {
		t.Fatalf("expected USD, got %q", got.PrimaryCurrency)
	}
	if got.MonthlyTotal.Cents != 0 || got.AnnualTotal.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestNormalizeTotals(t *testing.T) {
	// 10/month + 120/year -> monthly 10.00, annual 10*12+120 = 240.00
	got := Normalize([]Subscription{
		sub(1000, Monthly, "USD"),
		sub(12000, Yearly, "USD"),
	})
	if got.MonthlyTotal.Cents != 1000 {
		t.Fatalf("monthly expected 1000, got %d", got.MonthlyTotal.Cents)
	}
	if got.AnnualTotal.Cents != 24000 {
		t.Fatalf("annual expected 24000, got %d", got.AnnualTotal.Cents)
	}
}

func TestNormalizeOneTimeIgnored(t *testing.T) {
	got := Normalize([]Subscription{
		sub(1000, Monthly, "USD"),
		sub(5000, OneTime, "USD"),
	})
	if got.MonthlyTotal.Cents != 1000 || got.AnnualTotal.Cents != 12000 {
		t.Fatalf("one-time must not contribute, got %+v", got)
	}
	if len(got.Records) != 2 {
		t.Fatalf("one-time record still belongs to the primary set, got %d", len(got.Records))
	}
}

func TestNormalizeDominantCurrency(t *testing.T) {
	got := Normalize([]Subscription{
		sub(1000, Monthly, "EUR"),
		sub(2000, Monthly, "EUR"),
		sub(3000, Monthly, "USD"),
	})
	if got.PrimaryCurrency != "EUR" {
		t.Fatalf("expected EUR dominant, got %q", got.PrimaryCurrency)
	}
	if got.MonthlyTotal.Cents != 3000 {
		t.Fatalf("expected only EUR records summed, got %d", got.MonthlyTotal.Cents)
	}
	if got.ExcludedCount != 1 {
		t.Fatalf("expected 1 excluded, got %d", got.ExcludedCount)
	}
	// No FX: partition is exact
	if len(got.Records)+got.ExcludedCount != 3 {
		t.Fatalf("records + excluded must cover the input")
	}
}

func TestNormalizeMissingCurrencyCountsAsUSD(t *testing.T) {
	got := Normalize([]Subscription{
		sub(1000, Monthly, ""),
		sub(2000, Monthly, "USD"),
		sub(3000, Monthly, "EUR"),
	})
	if got.PrimaryCurrency != "USD" {
		t.Fatalf("expected USD dominant, got %q", got.PrimaryCurrency)
	}
	if got.MonthlyTotal.Cents != 3000 {
		t.Fatalf("expected 3000, got %d", got.MonthlyTotal.Cents)
	}
}

func TestNormalizeInactiveExcluded(t *testing.T) {
	inactive := sub(1000, Monthly, "USD")
	inactive.Active = false
	got := Normalize([]Subscription{inactive, sub(500, Monthly, "USD")})
	if got.MonthlyTotal.Cents != 500 {
		t.Fatalf("inactive must not count, got %d", got.MonthlyTotal.Cents)
	}
	if len(got.Records) != 1 {
		t.Fatalf("inactive must not appear in records, got %d", len(got.Records))
	}
}

func TestNormalizeAnnualAtLeastMonthly(t *testing.T) {
	got := Normalize([]Subscription{
		sub(999, Monthly, "USD"),
		sub(250, Monthly, "USD"),
	})
	if got.MonthlyTotal.Cents < 0 {
		t.Fatalf("monthly total must be non-negative")
	}
	if got.AnnualTotal.Cents < got.MonthlyTotal.Cents {
		t.Fatalf("annual %d must be >= monthly %d", got.AnnualTotal.Cents, got.MonthlyTotal.Cents)
	}
}
