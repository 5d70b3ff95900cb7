package billing

import (
	"fmt"

	"github.com/propbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AllocationStatus tracks invoicing of an allocation
type AllocationStatus string

const (
	AllocationStatusPending  AllocationStatus = "pending"
	AllocationStatusInvoiced AllocationStatus = "invoiced"
	AllocationStatusPaid     AllocationStatus = "paid"
)

// IsValid checks if the status is valid
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusInvoiced, AllocationStatusPaid:
		return true
	}
	return false
}

// Allocation is one tenant's persisted share of one bill
type Allocation struct {
	shared.BaseEntity
	BillID     string
	PropertyID string
	TenantID   string
	TenantName string
	Method     Method
	Percentage decimal.Decimal
	Amount     decimal.Decimal
	Status     AllocationStatus
}

// NewAllocation creates a pending allocation from a draft row
func NewAllocation(bill *Bill, row Row) (*Allocation, error) {
	if bill == nil || bill.ID == "" {
		return nil, shared.NewDomainError("INVALID_BILL", "Allocation requires a bill")
	}
	if row.TenantID == "" {
		return nil, shared.NewDomainError("INVALID_TENANT", "Allocation requires a tenant")
	}
	if !row.Method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", fmt.Sprintf("Invalid allocation method: %s", row.Method))
	}
	if !row.Amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	return &Allocation{
		BaseEntity: shared.NewBaseEntity(),
		BillID:     bill.ID,
		PropertyID: bill.PropertyID,
		TenantID:   row.TenantID,
		TenantName: row.TenantName,
		Method:     row.Method,
		Percentage: row.Percentage,
		Amount:     row.Amount,
		Status:     AllocationStatusPending,
	}, nil
}
