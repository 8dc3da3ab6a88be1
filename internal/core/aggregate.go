package core

import (
	"sort"
	"time"
)

// Granularity selects how ByCategory annualizes billing cycles.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityYearly  Granularity = "yearly"
)

// CategoryAmount is one slice of the category breakdown.
type CategoryAmount struct {
	Category string
	Amount   Money
}

// UpcomingLimit caps the upcoming-renewals list.
const UpcomingLimit = 5

// DueSoonDays is the whole-day span counted by DueWithinWeek.
const DueSoonDays = 7

// ByCategory buckets cost by category. Monthly granularity includes only
// monthly records, summed as-is. Yearly granularity annualizes monthly
// records (x12) and adds yearly records as-is; one-time records are excluded
// either way. Output preserves insertion order of the first-seen category.
// An empty result is a valid empty breakdown, not an error.
func ByCategory(subs []Subscription, g Granularity) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount

	add := func(category string, cents int64) {
		if i, ok := index[category]; ok {
			out[i].Amount.Cents += cents
			return
		}
		index[category] = len(out)
		out = append(out, CategoryAmount{Category: category, Amount: Money{Cents: cents}})
	}

	for _, s := range subs {
		if !s.Active {
			continue
		}
		switch g {
		case GranularityYearly:
			switch s.Cycle {
			case Monthly:
				add(s.CategoryOrDefault(), s.Price.Cents*12)
			case Yearly:
				add(s.CategoryOrDefault(), s.Price.Cents)
			}
		default:
			if s.Cycle == Monthly {
				add(s.CategoryOrDefault(), s.Price.Cents)
			}
		}
	}
	return out
}

// Upcoming returns the next renewals: records whose due date parses and is
// not before today, ascending by due date, stable on ties, capped at
// UpcomingLimit. The time of day of now is irrelevant; a record due today
// counts as upcoming. Records with unparseable dates are silently excluded.
// Inactive records still appear here; the active flag only takes them out of
// cost totals and reminders.
func Upcoming(subs []Subscription, now time.Time) []Subscription {
	today := dateOnly(now)

	type dated struct {
		sub Subscription
		due time.Time
	}
	var matched []dated
	for _, s := range subs {
		due, ok := s.DueDate()
		if !ok || due.Before(today) {
			continue
		}
		matched = append(matched, dated{sub: s, due: due})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].due.Before(matched[j].due)
	})

	if len(matched) > UpcomingLimit {
		matched = matched[:UpcomingLimit]
	}
	out := make([]Subscription, len(matched))
	for i, d := range matched {
		out[i] = d.sub
	}
	return out
}

// DueWithinWeek counts active records due between today and seven whole days
// out, inclusive on both ends. Unparseable dates count as not due.
func DueWithinWeek(subs []Subscription, now time.Time) int {
	today := dateOnly(now)
	count := 0
	for _, s := range subs {
		if !s.Active {
			continue
		}
		due, ok := s.DueDate()
		if !ok {
			continue
		}
		days := int(due.Sub(today).Hours() / 24)
		if days >= 0 && days <= DueSoonDays {
			count++
		}
	}
	return count
}

// dateOnly strips the time of day, keeping the calendar date in UTC so that
// comparisons against parsed YYYY-MM-DD values line up.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
