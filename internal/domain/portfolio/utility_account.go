package portfolio

import (
	"strings"

	"github.com/propbill/backend/internal/domain/shared"
)

// UtilityType tags a service billed on a utility account
type UtilityType string

const (
	UtilityTypeRates               UtilityType = "rates"
	UtilityTypeElectricity         UtilityType = "electricity"
	UtilityTypeWaterSanitation     UtilityType = "water_sanitation"
	UtilityTypeRefuseWaste         UtilityType = "refuse_waste"
	UtilityTypeEffluent            UtilityType = "effluent"
	UtilityTypeDSW                 UtilityType = "dsw"
	UtilityTypeLevies              UtilityType = "levies"
	UtilityTypeCSOSLevies          UtilityType = "csos_levies"
	UtilityTypeImprovementDistrict UtilityType = "improvement_district"
)

// AllUtilityTypes returns the fixed vocabulary in spreadsheet column order
func AllUtilityTypes() []UtilityType {
	return []UtilityType{
		UtilityTypeRates,
		UtilityTypeElectricity,
		UtilityTypeWaterSanitation,
		UtilityTypeRefuseWaste,
		UtilityTypeEffluent,
		UtilityTypeDSW,
		UtilityTypeLevies,
		UtilityTypeCSOSLevies,
		UtilityTypeImprovementDistrict,
	}
}

// IsValid checks if the utility type is part of the vocabulary
func (u UtilityType) IsValid() bool {
	for _, t := range AllUtilityTypes() {
		if t == u {
			return true
		}
	}
	return false
}

// IsFlagSet reports whether a spreadsheet flag cell marks the service active
func IsFlagSet(cell string) bool {
	return strings.ToUpper(cell) == "YES"
}

// AccountStatus is the lifecycle state of a utility account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// UtilityAccount is a utility service for one property, optionally linked to
// a tenant and a provider. Display strings are kept next to the IDs so
// listings do not need joins.
type UtilityAccount struct {
	shared.BaseEntity
	PropertyID       string
	TenantID         *string
	TenantName       string
	ProviderID       *string
	ProviderName     string
	AccountNumber    string
	SAPAccountNumber string
	BPNumber         string
	UtilityTypes     []UtilityType
	Status           AccountStatus
}

// NewUtilityAccount creates an active account for a resolved property
func NewUtilityAccount(propertyID, bpNumber string) (*UtilityAccount, error) {
	if propertyID == "" {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Utility account requires a property")
	}
	return &UtilityAccount{
		BaseEntity:   shared.NewBaseEntity(),
		PropertyID:   propertyID,
		BPNumber:     bpNumber,
		UtilityTypes: make([]UtilityType, 0),
		Status:       AccountStatusActive,
	}, nil
}
