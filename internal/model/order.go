package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of an Amazon order.
type OrderItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ASIN     string          `json:"asin,omitempty"`
}

// AmazonOrder is order detail returned by the orders worker.
type AmazonOrder struct {
	OrderID     string          `json:"order_id"`
	OrderDate   string          `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Items       []OrderItem     `json:"items"`
	Note        string          `json:"note,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitzero"`
}
