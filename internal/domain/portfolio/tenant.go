package portfolio

import (
	"strings"

	"github.com/propbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VacantTenantName marks a unit with no occupant in source spreadsheets
const VacantTenantName = "VACANT"

// Tenant is an occupant of a property
type Tenant struct {
	shared.BaseEntity
	Name string
	// GLA is the gross leasable area used for pro-rata allocation
	GLA        decimal.Decimal
	PropertyID *string
}

// NewTenant creates an unassigned tenant
func NewTenant(name string) (*Tenant, error) {
	if !IsOccupantName(name) {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty or VACANT")
	}
	return &Tenant{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		GLA:        decimal.Zero,
	}, nil
}

// AssignTo places the tenant in a property
func (t *Tenant) AssignTo(propertyID string) {
	t.PropertyID = &propertyID
	t.Touch()
}

// IsAssigned reports whether the tenant belongs to a property
func (t *Tenant) IsAssigned() bool {
	return t.PropertyID != nil && *t.PropertyID != ""
}

// IsOccupantName reports whether a spreadsheet tenant field names a real
// occupant: non-empty and not VACANT in any casing.
func IsOccupantName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && !strings.EqualFold(trimmed, VacantTenantName)
}
