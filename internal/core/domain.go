package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Monthly BillingCycle = "monthly"
	Yearly  BillingCycle = "yearly"
	OneTime BillingCycle = "one-time"
)

// DefaultCurrency is assumed whenever a record carries no currency code.
const DefaultCurrency = "USD"

// DateLayout is the wire and storage format for due dates.
const DateLayout = "2006-01-02"

type (
	BillingCycle string

	Money struct {
		Cents int64
	}

	// Subscription is the canonical record: one recurring charge owned by an
	// account. NextDueDate is kept as the stored string; a value that fails to
	// parse is treated as "no due date" by the aggregation functions rather
	// than surfaced as an error.
	Subscription struct {
		ID          string
		OwnerID     string
		Name        string
		Price       Money
		Currency    string
		Category    string
		Cycle       BillingCycle
		NextDueDate string
		Active      bool
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNameTooShort  = errors.New("name must be at least 2 characters")
	ErrInvalidCycle  = errors.New("invalid billing cycle")
	ErrInvalidDate   = errors.New("invalid due date")
	ErrEmptyOwner    = errors.New("empty owner")
)

func (c BillingCycle) Valid() bool {
	switch c {
	case Monthly, Yearly, OneTime:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CurrencyOrDefault returns the record's currency code, falling back to USD
// when the field is blank.
func (s Subscription) CurrencyOrDefault() string {
	cur := strings.TrimSpace(s.Currency)
	if cur == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(cur)
}

// CategoryOrDefault returns the grouping category, with blank mapped to
// "Uncategorized".
func (s Subscription) CategoryOrDefault() string {
	cat := strings.TrimSpace(s.Category)
	if cat == "" {
		return "Uncategorized"
	}
	return cat
}

// DueDate parses the stored due date. The second return is false when the
// stored value does not parse; callers skip such records.
func (s Subscription) DueDate() (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s.NextDueDate))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Name)) < 2 {
		return ErrNameTooShort
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := s.Price.Validate(); err != nil {
		return err
	}
	if !s.Cycle.Valid() {
		return ErrInvalidCycle
	}
	if _, ok := s.DueDate(); !ok {
		return ErrInvalidDate
	}
	return nil
}
