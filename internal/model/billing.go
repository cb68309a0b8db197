// Package model defines the household billing domain types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used in storage and JSON.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CreditCard is a card whose statements are tracked.
type CreditCard struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Last4     string    `json:"last4"`
	CreatedAt time.Time `json:"created_at"`
}

// BillingCycle is a date range that statements are grouped under.
type BillingCycle struct {
	ID        int64     `json:"id"`
	StartDate Date      `json:"start_date"`
	EndDate   Date      `json:"end_date"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}

// Statement is an uploaded card statement stored in the blob bucket.
type Statement struct {
	ID              int64     `json:"id"`
	BillingCycleID  int64     `json:"billing_cycle_id"`
	CreditCardID    *int64    `json:"credit_card_id"`
	CreditCardName  string    `json:"credit_card_name,omitempty"`
	CreditCardLast4 string    `json:"credit_card_last4,omitempty"`
	Filename        string    `json:"filename"`
	BlobKey         string    `json:"blob_key"`
	SizeBytes       int64     `json:"size_bytes"`
	StatementDate   *Date     `json:"statement_date"`
	UploadedAt      time.Time `json:"uploaded_at"`
}
