package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a single charge line parsed from a statement.
type Payment struct {
	ID                    int64            `json:"id"`
	StatementID           int64            `json:"statement_id"`
	Merchant              string           `json:"merchant"`
	MerchantNormalized    string           `json:"merchant_normalized"`
	MerchantDetails       string           `json:"merchant_details"`
	Amount                decimal.Decimal  `json:"amount"`
	AllocatedTo           string           `json:"allocated_to"`
	TransactionDate       *Date            `json:"transaction_date"`
	IsForeignCurrency     bool             `json:"is_foreign_currency"`
	ForeignCurrencyAmount *decimal.Decimal `json:"foreign_currency_amount"`
	ForeignCurrencyType   string           `json:"foreign_currency_type,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}

// Charge is a payment joined with the card it was billed to.
type Charge struct {
	Payment
	CreditCardID *int64 `json:"credit_card_id"`
	CardName     string `json:"card_name,omitempty"`
	Last4        string `json:"last4,omitempty"`
}

// ParsedCharge is a charge extracted from a statement before it is stored.
type ParsedCharge struct {
	Merchant              string           `json:"merchant"`
	Amount                decimal.Decimal  `json:"amount"`
	AllocatedTo           string           `json:"allocated_to,omitempty"`
	TransactionDate       *Date            `json:"transaction_date,omitempty"`
	IsForeignCurrency     bool             `json:"is_foreign_currency,omitempty"`
	ForeignCurrencyAmount *decimal.Decimal `json:"foreign_currency_amount,omitempty"`
	ForeignCurrencyType   string           `json:"foreign_currency_type,omitempty"`
}

// Assignment sets the allocation of one payment.
type Assignment struct {
	ID          int64  `json:"id"`
	AllocatedTo string `json:"allocated_to"`
}
