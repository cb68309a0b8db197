package model

import "time"

// Budget is a named spending bucket that charges are allocated to.
type Budget struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BudgetMerchant associates a normalized merchant with a budget.
// Charges whose normalized merchant matches are auto-allocated to the budget.
type BudgetMerchant struct {
	ID                 int64  `json:"id"`
	BudgetID           int64  `json:"budget_id"`
	Merchant           string `json:"merchant"`
	MerchantNormalized string `json:"merchant_normalized"`
}
