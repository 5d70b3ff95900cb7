package billing

import (
	"github.com/propbill/backend/internal/domain/shared/strategy"
	"github.com/propbill/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Method is how a tenant's share of a bill is derived
type Method string

const (
	MethodFullAbsorption Method = "full_absorption"
	MethodGLAProrata     Method = "gla_prorata"
	MethodFixed          Method = "fixed"
	MethodPercentage     Method = "percentage"
)

// AllMethods returns every allocation method
func AllMethods() []Method {
	return []Method{MethodFullAbsorption, MethodGLAProrata, MethodFixed, MethodPercentage}
}

// IsValid checks if the method is known
func (m Method) IsValid() bool {
	_, ok := methodStrategies[m]
	return ok
}

var (
	hundred = decimal.NewFromInt(100)

	methodStrategies = map[Method]strategy.ShareAllocationStrategy{
		MethodFullAbsorption: fullAbsorptionStrategy{
			Named: strategy.NewNamed(string(MethodFullAbsorption),
				"Tenant bears the whole bill"),
		},
		MethodGLAProrata: glaProrataStrategy{
			Named: strategy.NewNamed(string(MethodGLAProrata),
				"Share proportional to the tenant's gross leasable area"),
		},
		MethodFixed: fixedStrategy{
			Named: strategy.NewNamed(string(MethodFixed),
				"Operator-entered amount; percentage is derived for display"),
		},
		MethodPercentage: percentageStrategy{
			Named: strategy.NewNamed(string(MethodPercentage),
				"Operator-entered percentage of the bill total"),
		},
	}
)

// StrategyFor returns the share strategy for a method
func StrategyFor(m Method) (strategy.ShareAllocationStrategy, bool) {
	s, ok := methodStrategies[m]
	return s, ok
}

type fullAbsorptionStrategy struct {
	strategy.Named
}

func (fullAbsorptionStrategy) Compute(ctx strategy.ShareContext, _ strategy.ShareInput) strategy.Share {
	return strategy.Share{
		Percentage: hundred,
		Amount:     valueobject.RoundCents(ctx.BillTotal),
	}
}

type glaProrataStrategy struct {
	strategy.Named
}

// Compute derives the amount from the rounded percentage so the two shown
// values always agree with each other.
func (glaProrataStrategy) Compute(ctx strategy.ShareContext, in strategy.ShareInput) strategy.Share {
	if !ctx.TotalGLA.IsPositive() {
		return strategy.Share{Percentage: decimal.Zero, Amount: decimal.Zero}
	}
	pct := valueobject.RoundCents(in.GLA.Div(ctx.TotalGLA).Mul(hundred))
	return strategy.Share{
		Percentage: pct,
		Amount:     amountFor(pct, ctx.BillTotal),
	}
}

type percentageStrategy struct {
	strategy.Named
}

func (percentageStrategy) Compute(ctx strategy.ShareContext, in strategy.ShareInput) strategy.Share {
	return strategy.Share{
		Percentage: in.Percentage,
		Amount:     amountFor(in.Percentage, ctx.BillTotal),
	}
}

type fixedStrategy struct {
	strategy.Named
}

func (fixedStrategy) Compute(ctx strategy.ShareContext, in strategy.ShareInput) strategy.Share {
	return strategy.Share{
		Percentage: percentageFor(in.Amount, ctx.BillTotal),
		Amount:     in.Amount,
	}
}

func amountFor(pct, total decimal.Decimal) decimal.Decimal {
	return valueobject.NewMoneyZAR(total).PercentOf(pct).Amount()
}

func percentageFor(amount, total decimal.Decimal) decimal.Decimal {
	return valueobject.NewMoneyZAR(amount).ShareOf(valueobject.NewMoneyZAR(total))
}
