package billing

import (
	"strings"
	"time"

	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// BillStatus represents where a bill is in its lifecycle
type BillStatus string

const (
	BillStatusPendingExtraction BillStatus = "pending_extraction"
	BillStatusPendingValidation BillStatus = "pending_validation"
	BillStatusValidated         BillStatus = "validated"
	BillStatusAllocated         BillStatus = "allocated"
	BillStatusException         BillStatus = "exception"
)

// IsValid checks if the status is valid
func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusPendingExtraction, BillStatusPendingValidation, BillStatusValidated,
		BillStatusAllocated, BillStatusException:
		return true
	}
	return false
}

// CanAllocate reports whether a bill in this status may be allocated
func (s BillStatus) CanAllocate() bool {
	switch s {
	case BillStatusPendingExtraction, BillStatusPendingValidation, BillStatusValidated:
		return true
	}
	return false
}

// Bill is a utility invoice for a property over a billing period
type Bill struct {
	shared.BaseEntity
	PropertyID         string
	ProviderName       string
	TotalAmount        decimal.Decimal
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time
	Status             BillStatus
	ExceptionReason    string
}

// Total returns the bill total as money
func (b *Bill) Total() valueobject.Money {
	return valueobject.NewMoneyZAR(b.TotalAmount)
}

// EnsureAllocatable returns an error unless the bill may be allocated
func (b *Bill) EnsureAllocatable() error {
	if b.PropertyID == "" {
		return shared.NewDomainError("BILL_NO_PROPERTY", "Bill is not linked to a property")
	}
	if !b.Status.CanAllocate() {
		return shared.Errorf(shared.CodeInvalidState, "Cannot allocate bill in state: %s", b.Status)
	}
	return nil
}

// MarkAllocated transitions the bill to allocated
func (b *Bill) MarkAllocated() error {
	if !b.Status.CanAllocate() {
		return shared.Errorf(shared.CodeInvalidState, "Cannot allocate bill in state: %s", b.Status)
	}
	b.Status = BillStatusAllocated
	b.Touch()
	return nil
}

// FlagException moves the bill aside for manual review
func (b *Bill) FlagException(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Exception reason cannot be empty")
	}
	switch b.Status {
	case BillStatusAllocated, BillStatusException:
		return shared.Errorf(shared.CodeInvalidState, "Cannot flag exception on bill in state: %s", b.Status)
	}
	b.Status = BillStatusException
	b.ExceptionReason = reason
	b.Touch()
	return nil
}
