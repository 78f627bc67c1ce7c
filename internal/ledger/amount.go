package ledger

import (
    "fmt"

    "github.com/govalues/money"
    "github.com/tinoosan/banking/internal/errs"
)

// Amounts are kept at their currency's scale so minor units round-trip through storage.

// FromMinor builds an amount of curr from minor units.
func FromMinor(curr string, units int64) (money.Amount, error) {
    return money.NewAmountFromMinorUnits(curr, units)
}

// Minor returns a in minor units of its currency. a must have passed through
// Normalize; an amount outside the int64 range reports 0.
func Minor(a money.Amount) int64 {
    units, _ := a.MinorUnits()
    return units
}

// Zero returns a zero amount of curr at the currency scale.
func Zero(curr money.Currency) money.Amount {
    a, _ := money.NewAmountFromMinorUnits(curr.Code(), 0)
    return a
}

// Normalize checks that a is denominated in curr and carries no more fractional
// digits than curr allows, and returns it rescaled to the currency scale.
func Normalize(curr money.Currency, a money.Amount) (money.Amount, error) {
    if a.Curr() != curr {
        return money.Amount{}, fmt.Errorf("%w: currency %s, expected %s", errs.ErrInvalidAmount, a.Curr().Code(), curr.Code())
    }
    if a.Decimal().Trim(0).Scale() > curr.Scale() {
        return money.Amount{}, fmt.Errorf("%w: more than %d fractional digits", errs.ErrInvalidAmount, curr.Scale())
    }
    units, ok := a.MinorUnits()
    if !ok {
        return money.Amount{}, fmt.Errorf("%w: out of range", errs.ErrInvalidAmount)
    }
    return FromMinor(curr.Code(), units)
}

// ParseAmount parses a decimal string in curr and normalizes it.
func ParseAmount(curr money.Currency, s string) (money.Amount, error) {
    a, err := money.ParseAmount(curr.Code(), s)
    if err != nil { return money.Amount{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err) }
    return Normalize(curr, a)
}

// FormatAmount renders a as a plain decimal string without the currency code.
func FormatAmount(a money.Amount) string { return a.Decimal().String() }
