package portfolio

import (
	"strings"

	"github.com/propbill/backend/internal/domain/shared"
)

// DefaultCompany is recorded on properties whose owning company is not known
const DefaultCompany = "Bidvest"

// Property is identified by its business-partner number
type Property struct {
	shared.BaseEntity
	BPNumber string
	Name     string
	Company  string
}

// NewProperty creates a property for a BP number. The BP number doubles as
// the display name until someone renames the property.
func NewProperty(bpNumber, company string) (*Property, error) {
	bpNumber = strings.TrimSpace(bpNumber)
	if bpNumber == "" {
		return nil, shared.NewDomainError("INVALID_BP_NUMBER", "BP number cannot be empty")
	}
	if company == "" {
		company = DefaultCompany
	}
	return &Property{
		BaseEntity: shared.NewBaseEntity(),
		BPNumber:   bpNumber,
		Name:       bpNumber,
		Company:    company,
	}, nil
}
