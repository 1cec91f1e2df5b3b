package core

import (
	"errors"
	"time"
)

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
)

const (
	Weekly   RecurrencePattern = "weekly"
	Biweekly RecurrencePattern = "biweekly"
	Monthly  RecurrencePattern = "monthly"
)

type (
	TransactionType   string
	RecurrencePattern string

	// Date is a calendar date with day precision. The embedded time is
	// always midnight UTC.
	Date struct {
		time.Time
	}

	// Transaction is either a recurring template or a concrete entry.
	// Templates carry a RecurrencePattern; instances generated from a
	// template reference it through RecurringTemplateID.
	Transaction struct {
		ID                  int64 // 0 until persisted
		Date                Date
		Amount              float64 // magnitude, sign derived from Type
		Type                TransactionType
		Description         string
		Category            string
		Payee               string
		RecurringTemplateID int64 // 0 unless instance of a template
		IsTemplate          bool
		RecurrencePattern   RecurrencePattern // empty unless template
		CreatedAt           time.Time
	}

	// WeeklyBalance is one row of a month's week-bucketed balance
	// report. Derived on each query, never persisted.
	WeeklyBalance struct {
		WeekStart       Date
		WeekEnd         Date
		StartingBalance float64
		EndingBalance   float64
		NetChange       float64
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidPattern     = errors.New("invalid recurrence pattern")
	ErrTemplateNoPattern  = errors.New("template must have a recurrence pattern")
	ErrTemplateWithParent = errors.New("template cannot reference another template")
	ErrInstanceHasPattern = errors.New("instance cannot have a recurrence pattern")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrNotFound           = errors.New("transaction not found")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// ParseDateLayout parses a date using a caller-supplied layout. The
// result is normalized to midnight UTC like every other Date.
func ParseDateLayout(s, layout string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether two dates are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int (1-12).
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Withdrawal:
		return true
	}
	return false
}

func (p RecurrencePattern) Valid() bool {
	switch p {
	case Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

// Validate enforces the entity invariants. Violations are validation
// errors raised at construction time, never silently corrected.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.IsTemplate {
		if t.RecurringTemplateID != 0 {
			return ErrTemplateWithParent
		}
		if t.RecurrencePattern == "" {
			return ErrTemplateNoPattern
		}
		if !t.RecurrencePattern.Valid() {
			return ErrInvalidPattern
		}
		return nil
	}
	if t.RecurrencePattern != "" {
		return ErrInstanceHasPattern
	}
	return nil
}

// SignedAmount returns the amount with direction applied: positive for
// deposits, negative for withdrawals.
func (t Transaction) SignedAmount() float64 {
	if t.Type == Withdrawal {
		return -t.Amount
	}
	return t.Amount
}
