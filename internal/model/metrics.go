package model

import "github.com/shopspring/decimal"

// AllocationTotal is the summed amount allocated to one budget.
type AllocationTotal struct {
	AllocatedTo string          `json:"allocated_to"`
	Charges     int             `json:"charges"`
	Total       decimal.Decimal `json:"total"`
}

// CycleSummary aggregates the charges of one billing cycle.
type CycleSummary struct {
	CycleID        int64             `json:"cycle_id"`
	Statements     int               `json:"statements"`
	Charges        int               `json:"charges"`
	Total          decimal.Decimal   `json:"total"`
	Unallocated    int               `json:"unallocated"`
	UnallocatedSum decimal.Decimal   `json:"unallocated_total"`
	ByAllocation   []AllocationTotal `json:"by_allocation"`
	ForeignCharges int               `json:"foreign_charges"`
}
