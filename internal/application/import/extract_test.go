package importapp

import (
	"testing"

	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/infrastructure/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheetRow(line int, values map[string]string) spreadsheet.Row {
	return spreadsheet.Row{Line: line, Values: values}
}

func TestNormalize(t *testing.T) {
	rows := Normalize([]spreadsheet.Row{
		sheetRow(2, map[string]string{
			"BP Number":                  " 100234 ",
			"Vendor Name / Municipality": "CITY OF JOBURG - 403437971 (766698)",
			"Tenant Name":                "  Woolworths",
			"Account Number":             "403437971 ",
			"SAP Account Number":         "SAP-1",
			"Rates":                      " yes ",
			"Water & Sanitation":         "YES",
			"DSW":                        "Y",
			"Improvement District":       "YES",
			"Unrelated":                  "ignored",
		}),
	})
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 2, r.Line)
	assert.Equal(t, "100234", r.BPNumber)
	assert.Equal(t, "Woolworths", r.TenantName)
	assert.Equal(t, "403437971", r.AccountNumber)
	assert.Equal(t, "SAP-1", r.SAPAccountNumber)
	assert.Equal(t, "City Of Joburg", r.ProviderName())
	assert.True(t, r.HasOccupant())
	assert.Equal(t, []portfolio.UtilityType{
		portfolio.UtilityTypeRates,
		portfolio.UtilityTypeWaterSanitation,
		portfolio.UtilityTypeImprovementDistrict,
	}, r.UtilityTypes)
}

func TestNormalize_MissingColumnsReadEmpty(t *testing.T) {
	rows := Normalize([]spreadsheet.Row{sheetRow(2, map[string]string{"BP Number": "1"})})
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].VendorRaw)
	assert.Empty(t, rows[0].ProviderName())
	assert.False(t, rows[0].HasOccupant())
	assert.Empty(t, rows[0].UtilityTypes)
}

func TestFlagColumnsCoverEveryUtilityType(t *testing.T) {
	got := make([]portfolio.UtilityType, 0, len(flagColumns))
	for _, fc := range flagColumns {
		got = append(got, fc.utility)
	}
	assert.Equal(t, portfolio.AllUtilityTypes(), got)
}

func TestExtract(t *testing.T) {
	rows := []AccountRow{
		{Line: 2, BPNumber: "100", VendorRaw: "CITY OF JOBURG - 1", TenantName: "Woolworths"},
		{Line: 3, BPNumber: "100", VendorRaw: "City of Joburg - 2", TenantName: "VACANT"},
		{Line: 4, BPNumber: "200", VendorRaw: "ESKOM - 9", TenantName: "Woolworths"},
		{Line: 5, BPNumber: "300", VendorRaw: "", TenantName: "vacant"},
		{Line: 6, BPNumber: "", VendorRaw: "Harbour Body Corporate", TenantName: "woolworths"},
	}

	ex := Extract(rows, "Acme Properties")

	names := func(providers []*portfolio.Provider) []string {
		out := make([]string, 0, len(providers))
		for _, p := range providers {
			out = append(out, p.Name)
		}
		return out
	}
	assert.Equal(t, []string{"City Of Joburg", "Eskom", "Harbour Body Corporate"}, names(ex.Providers))
	assert.Equal(t, portfolio.ProviderTypeEskom, ex.Providers[1].Type)
	assert.Equal(t, portfolio.ProviderTypePrivate, ex.Providers[2].Type)

	require.Len(t, ex.Properties, 3)
	assert.Equal(t, "100", ex.Properties[0].BPNumber)
	assert.Equal(t, "Acme Properties", ex.Properties[0].Company)

	// tenant names match exactly, so case variants are distinct tenants
	require.Len(t, ex.Tenants, 2)
	assert.Equal(t, "Woolworths", ex.Tenants[0].Name)
	assert.Equal(t, "woolworths", ex.Tenants[1].Name)
	assert.Equal(t, "100", ex.TenantBPNumber("Woolworths"))
	assert.Equal(t, "", ex.TenantBPNumber("woolworths"))
	assert.Len(t, ex.Rows, 5)
}

func TestSkipLog(t *testing.T) {
	log := newSkipLog(2)
	log.Add(SkippedRow{Line: 2, Reason: "missing BP number"})
	log.Add(SkippedRow{Line: 3, BPNumber: "9", Reason: "unknown BP number"})
	log.Add(SkippedRow{Line: 4, Reason: "missing BP number"})

	assert.Equal(t, 3, log.Total())
	assert.Len(t, log.Rows(), 2)
	assert.True(t, log.IsTruncated())
	assert.Equal(t, "line 3 (BP 9): unknown BP number", log.Rows()[1].String())
	assert.Equal(t, "line 2: missing BP number", log.Rows()[0].String())
}
