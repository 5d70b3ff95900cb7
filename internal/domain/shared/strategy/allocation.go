package strategy

import "github.com/shopspring/decimal"

// ShareContext carries the values every row of one recalculation pass sees
type ShareContext struct {
	BillTotal decimal.Decimal
	// TotalGLA is the sum of GLA across all rows currently in the set
	TotalGLA decimal.Decimal
}

// ShareInput is the current state of a single row
type ShareInput struct {
	GLA        decimal.Decimal
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// Share is the percentage and amount a strategy assigns to a row
type Share struct {
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// ShareAllocationStrategy derives one tenant's share of a bill
type ShareAllocationStrategy interface {
	Strategy
	// Compute returns the row's percentage and amount, both rounded to cents
	Compute(ctx ShareContext, in ShareInput) Share
}
