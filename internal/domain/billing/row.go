package billing

import (
	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// Row is one tenant's draft share of a bill
type Row struct {
	TenantID   string
	TenantName string
	GLA        decimal.Decimal
	Method     Method
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// InitRows seeds one row per tenant. A sole tenant absorbs the whole bill.
// With several tenants every row starts at 0% so the operator has to choose
// a split explicitly.
func InitRows(tenants []portfolio.Tenant, billTotal decimal.Decimal) []Row {
	rows := make([]Row, 0, len(tenants))
	for _, t := range tenants {
		rows = append(rows, Row{
			TenantID:   t.ID,
			TenantName: t.Name,
			GLA:        t.GLA,
			Method:     MethodPercentage,
			Percentage: decimal.Zero,
			Amount:     decimal.Zero,
		})
	}
	if len(rows) == 1 {
		rows[0].Method = MethodFullAbsorption
	}
	return Recalculate(rows, billTotal)
}

// Recalculate applies every row's method and returns a new slice. The input
// is not modified. Rows with an unknown method are copied unchanged.
func Recalculate(rows []Row, billTotal decimal.Decimal) []Row {
	out := cloneRows(rows)
	ctx := shareContext(out, billTotal)
	for i := range out {
		out[i] = applyMethod(out[i], ctx)
	}
	return out
}

// SetMethod changes one row's method and recomputes that row along with every
// gla_prorata row, keeping pro-rata shares consistent with each other.
func SetMethod(rows []Row, index int, method Method, billTotal decimal.Decimal) []Row {
	out := cloneRows(rows)
	if index < 0 || index >= len(out) {
		return out
	}
	out[index].Method = method
	ctx := shareContext(out, billTotal)
	for i := range out {
		if i == index || out[i].Method == MethodGLAProrata {
			out[i] = applyMethod(out[i], ctx)
		}
	}
	return out
}

// SetPercentage records an operator-entered percentage and derives the amount
func SetPercentage(rows []Row, index int, pct, billTotal decimal.Decimal) []Row {
	out := cloneRows(rows)
	if index < 0 || index >= len(out) {
		return out
	}
	out[index].Percentage = pct
	out[index].Amount = amountFor(pct, billTotal)
	return out
}

// SetAmount records an operator-entered amount and derives the percentage
func SetAmount(rows []Row, index int, amount, billTotal decimal.Decimal) []Row {
	out := cloneRows(rows)
	if index < 0 || index >= len(out) {
		return out
	}
	out[index].Amount = amount
	out[index].Percentage = percentageFor(amount, billTotal)
	return out
}

// TotalGLA sums GLA across rows
func TotalGLA(rows []Row) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.GLA)
	}
	return total
}

func shareContext(rows []Row, billTotal decimal.Decimal) strategy.ShareContext {
	return strategy.ShareContext{
		BillTotal: billTotal,
		TotalGLA:  TotalGLA(rows),
	}
}

func applyMethod(r Row, ctx strategy.ShareContext) Row {
	s, ok := StrategyFor(r.Method)
	if !ok {
		return r
	}
	share := s.Compute(ctx, strategy.ShareInput{
		GLA:        r.GLA,
		Percentage: r.Percentage,
		Amount:     r.Amount,
	})
	r.Percentage = share.Percentage
	r.Amount = share.Amount
	return r
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}
