package restaurant

import (
	"fmt"
	"strconv"
	"strings"
)

const centsPerUnit = 100

// AmountCents is a non-negative currency amount in cents.
type AmountCents int64

// PositiveAmountCents is a currency amount strictly greater than zero.
type PositiveAmountCents int64

// SignedAmountCents is a currency delta; debits are negative.
type SignedAmountCents int64

// Points is a non-negative loyalty point count.
type Points int64

// NewAmountCents validates a non-negative amount.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// NewPositiveAmountCents validates an amount and ensures it is strictly positive.
func NewPositiveAmountCents(raw int64) (PositiveAmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return PositiveAmountCents(raw), nil
}

// NewPoints validates a non-negative point count.
func NewPoints(raw int64) (Points, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPoints)
	}
	return Points(raw), nil
}

// ParseAmountCents converts a decimal string such as "3.50" into cents without floating point.
func ParseAmountCents(raw string) (AmountCents, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmountCents)
	}
	whole, fraction, hasFraction := strings.Cut(trimmed, ".")
	if whole == "" || (hasFraction && (fraction == "" || len(fraction) > 2)) {
		return 0, fmt.Errorf("%w: %q is not a decimal with at most two places", ErrInvalidAmountCents, raw)
	}
	for _, digits := range []string{whole, fraction} {
		for _, character := range digits {
			if character < '0' || character > '9' {
				return 0, fmt.Errorf("%w: %q is not a decimal with at most two places", ErrInvalidAmountCents, raw)
			}
		}
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmountCents, err)
	}
	if units > (1<<62)/centsPerUnit {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmountCents)
	}
	var cents int64
	if hasFraction {
		padded := fraction
		if len(padded) == 1 {
			padded += "0"
		}
		cents, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmountCents, err)
		}
	}
	return AmountCents(units*centsPerUnit + cents), nil
}

// ParsePositiveAmountCents parses a decimal string that must be greater than zero.
func ParsePositiveAmountCents(raw string) (PositiveAmountCents, error) {
	amount, err := ParseAmountCents(raw)
	if err != nil {
		return 0, err
	}
	return NewPositiveAmountCents(amount.Int64())
}

// Int64 exposes the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// String renders the amount as a decimal with two places.
func (amount AmountCents) String() string {
	return formatCents(int64(amount))
}

// Int64 exposes the raw cents value.
func (amount PositiveAmountCents) Int64() int64 {
	return int64(amount)
}

// ToAmountCents converts to the non-negative amount type.
func (amount PositiveAmountCents) ToAmountCents() AmountCents {
	return AmountCents(amount)
}

// Credit is the signed delta that adds the amount.
func (amount PositiveAmountCents) Credit() SignedAmountCents {
	return SignedAmountCents(amount)
}

// Debit is the signed delta that removes the amount.
func (amount PositiveAmountCents) Debit() SignedAmountCents {
	return SignedAmountCents(-amount)
}

// String renders the amount as a decimal with two places.
func (amount PositiveAmountCents) String() string {
	return formatCents(int64(amount))
}

// Int64 exposes the raw cents value.
func (amount SignedAmountCents) Int64() int64 {
	return int64(amount)
}

// String renders the amount as a signed decimal with two places.
func (amount SignedAmountCents) String() string {
	return formatCents(int64(amount))
}

// Int64 exposes the raw point count.
func (points Points) Int64() int64 {
	return int64(points)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/centsPerUnit, cents%centsPerUnit)
}
