package importapp

import (
	"strings"

	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/infrastructure/spreadsheet"
)

// Spreadsheet headers. Matching is exact, including case and spacing.
const (
	HeaderBPNumber         = "BP Number"
	HeaderVendor           = "Vendor Name / Municipality"
	HeaderTenantName       = "Tenant Name"
	HeaderAccountNumber    = "Account Number"
	HeaderSAPAccountNumber = "SAP Account Number"
)

// flagColumns maps each utility flag header to its utility type, in
// spreadsheet column order
var flagColumns = []struct {
	header  string
	utility portfolio.UtilityType
}{
	{"Rates", portfolio.UtilityTypeRates},
	{"Electricity", portfolio.UtilityTypeElectricity},
	{"Water & Sanitation", portfolio.UtilityTypeWaterSanitation},
	{"Refuse / Waste", portfolio.UtilityTypeRefuseWaste},
	{"Effluent", portfolio.UtilityTypeEffluent},
	{"DSW", portfolio.UtilityTypeDSW},
	{"Levies", portfolio.UtilityTypeLevies},
	{"CSOS Levies", portfolio.UtilityTypeCSOSLevies},
	{"Improvement District", portfolio.UtilityTypeImprovementDistrict},
}

// AccountRow is one spreadsheet row mapped to named fields with values
// trimmed
type AccountRow struct {
	Line             int
	BPNumber         string
	VendorRaw        string
	TenantName       string
	AccountNumber    string
	SAPAccountNumber string
	UtilityTypes     []portfolio.UtilityType
}

// ProviderName is the canonical provider for the row, or "" when the vendor
// cell is empty
func (r AccountRow) ProviderName() string {
	return portfolio.CanonicalProviderName(r.VendorRaw)
}

// HasOccupant reports whether the row names a real tenant
func (r AccountRow) HasOccupant() bool {
	return portfolio.IsOccupantName(r.TenantName)
}

// Normalize maps header-keyed rows onto AccountRows. Unknown columns are
// ignored and missing ones read as "".
func Normalize(rows []spreadsheet.Row) []AccountRow {
	out := make([]AccountRow, 0, len(rows))
	for _, row := range rows {
		get := func(header string) string {
			return strings.TrimSpace(row.Get(header))
		}
		ar := AccountRow{
			Line:             row.Line,
			BPNumber:         get(HeaderBPNumber),
			VendorRaw:        get(HeaderVendor),
			TenantName:       get(HeaderTenantName),
			AccountNumber:    get(HeaderAccountNumber),
			SAPAccountNumber: get(HeaderSAPAccountNumber),
			UtilityTypes:     make([]portfolio.UtilityType, 0, len(flagColumns)),
		}
		for _, fc := range flagColumns {
			if portfolio.IsFlagSet(get(fc.header)) {
				ar.UtilityTypes = append(ar.UtilityTypes, fc.utility)
			}
		}
		out = append(out, ar)
	}
	return out
}

// hasColumn reports whether the parsed sheet carries header
func hasColumn(rows []spreadsheet.Row, header string) bool {
	if len(rows) == 0 {
		return false
	}
	_, ok := rows[0].Values[header]
	return ok
}
