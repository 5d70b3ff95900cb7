package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/propbill/backend/internal/domain/billing"
	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/docstore"
	"github.com/shopspring/decimal"
)

// Collection names
const (
	CollectionBills           = "bills"
	CollectionAllocations     = "allocations"
	CollectionTenants         = "tenants"
	CollectionProviders       = "providers"
	CollectionProperties      = "properties"
	CollectionUtilityAccounts = "utilityAccounts"
	CollectionImportRuns      = "importRuns"
)

// IndexedFields lists the equality-query fields per collection
var IndexedFields = map[string][]string{
	CollectionAllocations: {"billId"},
	CollectionTenants:     {"propertyId", "name"},
	CollectionProviders:   {"name"},
	CollectionProperties:  {"bpNumber"},
	CollectionBills:       {"propertyId"},
	CollectionImportRuns:  {"importId"},
}

// moneyValue stores amounts as plain numbers rounded to cents
func moneyValue(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func stringField(doc docstore.Document, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func optionalStringField(doc docstore.Document, key string) *string {
	s := stringField(doc, key)
	if s == "" {
		return nil
	}
	return &s
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func decimalField(doc docstore.Document, key string) (decimal.Decimal, error) {
	switch v := doc[key].(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case decimal.Decimal:
		return v, nil
	case string:
		if v == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %s: unsupported numeric type %T", key, v)
	}
}

func intField(doc docstore.Document, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func timeField(doc docstore.Document, key string) (time.Time, error) {
	switch v := doc[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %s: %w", key, err)
		}
		return t, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("field %s: unsupported time type %T", key, v)
	}
}

func stringSliceField(doc docstore.Document, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// baseEntityFrom restores ID and timestamps from a snapshot
func baseEntityFrom(snap *docstore.Snapshot) (shared.BaseEntity, error) {
	created, err := timeField(snap.Data, "createdAt")
	if err != nil {
		return shared.BaseEntity{}, err
	}
	updated, err := timeField(snap.Data, "updatedAt")
	if err != nil {
		return shared.BaseEntity{}, err
	}
	return shared.BaseEntity{ID: snap.ID, CreatedAt: created, UpdatedAt: updated}, nil
}

// BillDocument encodes a bill. Bills are created by the extraction process;
// this is used for seeding and tests.
func BillDocument(b *billing.Bill) docstore.Document {
	return docstore.Document{
		"propertyId":         b.PropertyID,
		"providerName":       b.ProviderName,
		"totalAmount":        moneyValue(b.TotalAmount),
		"billingPeriodStart": b.BillingPeriodStart.UTC(),
		"billingPeriodEnd":   b.BillingPeriodEnd.UTC(),
		"status":             string(b.Status),
		"exceptionReason":    b.ExceptionReason,
		"createdAt":          b.CreatedAt.UTC(),
		"updatedAt":          b.UpdatedAt.UTC(),
	}
}

func billFromSnapshot(snap *docstore.Snapshot) (*billing.Bill, error) {
	base, err := baseEntityFrom(snap)
	if err != nil {
		return nil, err
	}
	total, err := decimalField(snap.Data, "totalAmount")
	if err != nil {
		return nil, err
	}
	start, err := timeField(snap.Data, "billingPeriodStart")
	if err != nil {
		return nil, err
	}
	end, err := timeField(snap.Data, "billingPeriodEnd")
	if err != nil {
		return nil, err
	}
	return &billing.Bill{
		BaseEntity:         base,
		PropertyID:         stringField(snap.Data, "propertyId"),
		ProviderName:       stringField(snap.Data, "providerName"),
		TotalAmount:        total,
		BillingPeriodStart: start,
		BillingPeriodEnd:   end,
		Status:             billing.BillStatus(stringField(snap.Data, "status")),
		ExceptionReason:    stringField(snap.Data, "exceptionReason"),
	}, nil
}

// AllocationDocument encodes an allocation
func AllocationDocument(a *billing.Allocation) docstore.Document {
	return docstore.Document{
		"billId":     a.BillID,
		"propertyId": a.PropertyID,
		"tenantId":   a.TenantID,
		"tenantName": a.TenantName,
		"method":     string(a.Method),
		"percentage": moneyValue(a.Percentage),
		"amount":     moneyValue(a.Amount),
		"status":     string(a.Status),
		"createdAt":  a.CreatedAt.UTC(),
	}
}

func allocationFromSnapshot(snap *docstore.Snapshot) (*billing.Allocation, error) {
	base, err := baseEntityFrom(snap)
	if err != nil {
		return nil, err
	}
	pct, err := decimalField(snap.Data, "percentage")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(snap.Data, "amount")
	if err != nil {
		return nil, err
	}
	status := billing.AllocationStatus(stringField(snap.Data, "status"))
	if status == "" {
		status = billing.AllocationStatusPending
	}
	return &billing.Allocation{
		BaseEntity: base,
		BillID:     stringField(snap.Data, "billId"),
		PropertyID: stringField(snap.Data, "propertyId"),
		TenantID:   stringField(snap.Data, "tenantId"),
		TenantName: stringField(snap.Data, "tenantName"),
		Method:     billing.Method(stringField(snap.Data, "method")),
		Percentage: pct,
		Amount:     amount,
		Status:     status,
	}, nil
}

// TenantDocument encodes a tenant
func TenantDocument(t *portfolio.Tenant) docstore.Document {
	return docstore.Document{
		"name":       t.Name,
		"gla":        t.GLA.InexactFloat64(),
		"propertyId": optionalString(t.PropertyID),
		"createdAt":  t.CreatedAt.UTC(),
	}
}

func tenantFromSnapshot(snap *docstore.Snapshot) (*portfolio.Tenant, error) {
	base, err := baseEntityFrom(snap)
	if err != nil {
		return nil, err
	}
	gla, err := decimalField(snap.Data, "gla")
	if err != nil {
		return nil, err
	}
	return &portfolio.Tenant{
		BaseEntity: base,
		Name:       stringField(snap.Data, "name"),
		GLA:        gla,
		PropertyID: optionalStringField(snap.Data, "propertyId"),
	}, nil
}

// ProviderDocument encodes a provider
func ProviderDocument(p *portfolio.Provider) docstore.Document {
	return docstore.Document{
		"name":      p.Name,
		"type":      string(p.Type),
		"createdAt": p.CreatedAt.UTC(),
	}
}

// PropertyDocument encodes a property
func PropertyDocument(p *portfolio.Property) docstore.Document {
	return docstore.Document{
		"bpNumber":  p.BPNumber,
		"name":      p.Name,
		"company":   p.Company,
		"createdAt": p.CreatedAt.UTC(),
	}
}

// UtilityAccountDocument encodes a utility account
func UtilityAccountDocument(a *portfolio.UtilityAccount) docstore.Document {
	types := make([]string, 0, len(a.UtilityTypes))
	for _, t := range a.UtilityTypes {
		types = append(types, string(t))
	}
	return docstore.Document{
		"propertyId":       a.PropertyID,
		"tenantId":         optionalString(a.TenantID),
		"tenantName":       a.TenantName,
		"providerId":       optionalString(a.ProviderID),
		"providerName":     a.ProviderName,
		"accountNumber":    a.AccountNumber,
		"sapAccountNumber": a.SAPAccountNumber,
		"bpNumber":         a.BPNumber,
		"utilityTypes":     types,
		"status":           string(a.Status),
		"createdAt":        a.CreatedAt.UTC(),
	}
}

// UtilityAccountFromSnapshot decodes a utility account
func UtilityAccountFromSnapshot(snap *docstore.Snapshot) (*portfolio.UtilityAccount, error) {
	base, err := baseEntityFrom(snap)
	if err != nil {
		return nil, err
	}
	raw := stringSliceField(snap.Data, "utilityTypes")
	types := make([]portfolio.UtilityType, 0, len(raw))
	for _, r := range raw {
		types = append(types, portfolio.UtilityType(r))
	}
	return &portfolio.UtilityAccount{
		BaseEntity:       base,
		PropertyID:       stringField(snap.Data, "propertyId"),
		TenantID:         optionalStringField(snap.Data, "tenantId"),
		TenantName:       stringField(snap.Data, "tenantName"),
		ProviderID:       optionalStringField(snap.Data, "providerId"),
		ProviderName:     stringField(snap.Data, "providerName"),
		AccountNumber:    stringField(snap.Data, "accountNumber"),
		SAPAccountNumber: stringField(snap.Data, "sapAccountNumber"),
		BPNumber:         stringField(snap.Data, "bpNumber"),
		UtilityTypes:     types,
		Status:           portfolio.AccountStatus(stringField(snap.Data, "status")),
	}, nil
}

