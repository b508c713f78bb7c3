package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------- Errores de Money ----------
var (
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrInvalidCurrency  = errors.New("currency cannot be empty")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrZeroMultiplier   = errors.New("multiplier cannot be zero")
)

// Money es un value object inmutable: cada operación devuelve una nueva
// instancia. La aritmética entre monedas distintas es un error, nunca una
// conversión implícita.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if currency == "" {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewMoneyFromFloat es un atajo para handlers y tests.
func NewMoneyFromFloat(amount float64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Multiply escala el importe por un entero positivo (cantidades de línea).
func (m Money) Multiply(multiplier int64) (Money, error) {
	if multiplier == 0 {
		return Money{}, ErrZeroMultiplier
	}
	if multiplier < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(multiplier)), Currency: m.Currency}, nil
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}
