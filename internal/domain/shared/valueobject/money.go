package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	ZAR Currency = "ZAR" // South African Rand (default)
	USD Currency = "USD"
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = ZAR

// CentPlaces is the number of decimal places bills and allocations are kept at
const CentPlaces int32 = 2

var currencySymbols = map[Currency]string{
	ZAR: "R",
	USD: "$",
}

var hundred = decimal.NewFromInt(100)

// Money is a value object representing monetary amounts
// It is immutable - all operations return new Money instances
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyZAR creates Money in rand
func NewMoneyZAR(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: ZAR}
}

// NewMoneyZARFromFloat creates Money in rand from float64
func NewMoneyZARFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: ZAR}
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns a new Money with other subtracted
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Abs returns the absolute value
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// RoundCents rounds the amount to whole cents
func (m Money) RoundCents() Money {
	return Money{amount: RoundCents(m.amount), currency: m.currency}
}

// PercentOf returns pct percent of m, rounded to cents
func (m Money) PercentOf(pct decimal.Decimal) Money {
	return Money{amount: RoundCents(pct.Div(hundred).Mul(m.amount)), currency: m.currency}
}

// ShareOf returns the percentage m represents of total, rounded to two places.
// A zero total yields a zero percentage.
func (m Money) ShareOf(total Money) decimal.Decimal {
	if total.amount.IsZero() {
		return decimal.Zero
	}
	return RoundCents(m.amount.Div(total.amount).Mul(hundred))
}

// Equals compares amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats the amount with its currency symbol, e.g. "R1000.00" or "R-50.00"
func (m Money) String() string {
	symbol, ok := currencySymbols[m.currency]
	if !ok {
		symbol = string(m.currency) + " "
	}
	return symbol + m.amount.StringFixed(CentPlaces)
}

// Float64 returns the amount as float64 for document encoding
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// RoundCents rounds a decimal half away from zero to two places
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}
