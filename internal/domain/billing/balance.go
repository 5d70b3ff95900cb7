package billing

import (
	"fmt"

	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest absolute difference between the allocated
// sum and the bill total that still counts as balanced
var BalanceTolerance = decimal.NewFromFloat(0.02)

// Validation error codes for allocation submission
const (
	CodeAllocationNoRows     = "ALLOCATION_NO_ROWS"
	CodeNothingAllocated     = "ALLOCATION_NOTHING_ALLOCATED"
	CodeAllocationUnbalanced = "ALLOCATION_UNBALANCED"
	CodeNegativeAmount       = "ALLOCATION_NEGATIVE_AMOUNT"
	CodePercentageOutOfRange = "ALLOCATION_PERCENTAGE_OUT_OF_RANGE"
	CodeDuplicateTenant      = "ALLOCATION_DUPLICATE_TENANT"
	CodeUnknownTenant        = "ALLOCATION_UNKNOWN_TENANT"
	CodeAllocationConflict   = "ALLOCATION_CONFLICT"
)

var (
	ErrNoAllocationRows = shared.NewDomainError(CodeAllocationNoRows,
		"There are no tenants on this property to allocate the bill to")
	ErrNothingAllocated = shared.NewDomainError(CodeNothingAllocated,
		"At least one tenant must be allocated an amount greater than zero")
	// ErrUnbalanced matches any unbalanced rejection via errors.Is
	ErrUnbalanced = shared.NewDomainError(CodeAllocationUnbalanced, "Allocations do not balance with the bill total")
	// The row errors below carry the offending tenant in their message and
	// match these sentinels by code.
	ErrNegativeAmount       = shared.NewDomainError(CodeNegativeAmount, "Allocation amounts cannot be negative")
	ErrPercentageOutOfRange = shared.NewDomainError(CodePercentageOutOfRange, "Percentage must be between 0 and 100")
	ErrDuplicateTenant      = shared.NewDomainError(CodeDuplicateTenant, "A tenant can only be allocated once per bill")
	ErrUnknownTenant        = shared.NewDomainError(CodeUnknownTenant, "Tenant does not belong to the bill's property")
	ErrAllocationConflict   = shared.NewDomainError(CodeAllocationConflict, "Tenant already holds a different allocation for this bill")
)

// Balance reconciles a row set against its bill total
type Balance struct {
	BillTotal  decimal.Decimal
	Allocated  decimal.Decimal
	Difference decimal.Decimal
	Balanced   bool
}

// CheckBalance sums the rows. Difference is allocated minus total, rounded to cents.
func CheckBalance(rows []Row, billTotal decimal.Decimal) Balance {
	allocated := decimal.Zero
	for _, r := range rows {
		allocated = allocated.Add(r.Amount)
	}
	diff := valueobject.RoundCents(allocated.Sub(billTotal))
	return Balance{
		BillTotal:  billTotal,
		Allocated:  allocated,
		Difference: diff,
		Balanced:   diff.Abs().LessThanOrEqual(BalanceTolerance),
	}
}

// ValidateForCommit runs the pre-flight checks that gate any write. Every
// row is checked, zero rows included, so the balance is computed over
// exactly the amounts that get persisted.
func ValidateForCommit(rows []Row, billTotal decimal.Decimal) error {
	if len(rows) == 0 {
		return ErrNoAllocationRows
	}
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if err := validateRow(r); err != nil {
			return err
		}
		if _, dup := seen[r.TenantID]; dup {
			return shared.Errorf(CodeDuplicateTenant, "Tenant %s appears more than once", rowLabel(r))
		}
		seen[r.TenantID] = struct{}{}
	}
	if len(PositiveRows(rows)) == 0 {
		return ErrNothingAllocated
	}
	bal := CheckBalance(rows, billTotal)
	if !bal.Balanced {
		return shared.NewDomainError(CodeAllocationUnbalanced, fmt.Sprintf(
			"Allocations do not balance with the bill total: difference of %s (allocated %s of %s)",
			valueobject.NewMoneyZAR(bal.Difference),
			valueobject.NewMoneyZAR(bal.Allocated).RoundCents(),
			valueobject.NewMoneyZAR(billTotal),
		))
	}
	return nil
}

func validateRow(r Row) error {
	if r.Method == MethodPercentage && (r.Percentage.IsNegative() || r.Percentage.GreaterThan(hundred)) {
		return shared.Errorf(CodePercentageOutOfRange,
			"Percentage for %s must be between 0 and 100, got %s", rowLabel(r), r.Percentage.String())
	}
	if r.Amount.IsNegative() {
		return shared.Errorf(CodeNegativeAmount,
			"Amount for %s cannot be negative, got %s", rowLabel(r), valueobject.NewMoneyZAR(r.Amount))
	}
	return nil
}

func rowLabel(r Row) string {
	if r.TenantName != "" {
		return r.TenantName
	}
	return r.TenantID
}

// PositiveRows returns the rows that will be persisted, in order
func PositiveRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Amount.IsPositive() {
			out = append(out, r)
		}
	}
	return out
}
