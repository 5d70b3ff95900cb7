package billing

import "context"

// BillRepository loads bills and persists their status changes
type BillRepository interface {
	FindByID(ctx context.Context, id string) (*Bill, error)
	// UpdateStatus writes the bill's status and exception reason
	UpdateStatus(ctx context.Context, bill *Bill) error
}

// AllocationRepository persists allocations one document at a time
type AllocationRepository interface {
	Create(ctx context.Context, allocation *Allocation) error
	FindByBill(ctx context.Context, billID string) ([]Allocation, error)
}
