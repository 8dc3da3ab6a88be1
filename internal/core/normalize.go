package core

// CostSummary is the result of normalizing a subscription list into a single
// comparable currency. Only records in the dominant currency participate in
// the totals; no FX conversion is attempted, so multi-currency accounts get
// partial totals with ExcludedCount disclosing how many records were left out.
type CostSummary struct {
	PrimaryCurrency string
	Records         []Subscription
	MonthlyTotal    Money
	AnnualTotal     Money
	ExcludedCount   int
}

// Normalize groups records by currency, selects the dominant currency and
// computes monthly and annual totals over the active records priced in it.
//
// Dominant-currency selection counts every input record (missing currency
// counts as USD); on a tie the currency seen first wins, and callers must not
// rely on tie order. A record is inactive only when Active is explicitly
// false. Monthly totals sum monthly cycles; the annual total is the monthly
// total times twelve plus the yearly cycles. One-time records contribute to
// neither. Empty input yields zero totals and USD.
func Normalize(subs []Subscription) CostSummary {
	primary := dominantCurrency(subs)

	summary := CostSummary{PrimaryCurrency: primary}
	for _, s := range subs {
		if !s.Active {
			continue
		}
		if s.CurrencyOrDefault() != primary {
			summary.ExcludedCount++
			continue
		}
		summary.Records = append(summary.Records, s)
		switch s.Cycle {
		case Monthly:
			summary.MonthlyTotal.Cents += s.Price.Cents
		case Yearly:
			summary.AnnualTotal.Cents += s.Price.Cents
		}
	}
	summary.AnnualTotal.Cents += summary.MonthlyTotal.Cents * 12
	return summary
}

func dominantCurrency(subs []Subscription) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range subs {
		cur := s.CurrencyOrDefault()
		if _, seen := counts[cur]; !seen {
			order = append(order, cur)
		}
		counts[cur]++
	}

	primary := DefaultCurrency
	best := 0
	for _, cur := range order {
		if counts[cur] > best {
			primary = cur
			best = counts[cur]
		}
	}
	return primary
}
