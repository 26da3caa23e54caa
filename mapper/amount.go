package mapper

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/shopspring/decimal"

	"github.com/sendly/sendly-rosetta/constants"
)

// StablecoinDecimals is the precision of every supported stablecoin.
const StablecoinDecimals = constants.StablecoinDecimals

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	ErrTooPrecise     = fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, StablecoinDecimals)
)

// ParseAmount converts a human decimal string such as "12.50" into the
// smallest unit of a 6-decimals stablecoin.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}

	units := d.Shift(StablecoinDecimals)
	if !units.IsInteger() {
		return nil, ErrTooPrecise
	}
	return units.BigInt(), nil
}

// FormatAmount renders a smallest-unit value as a human decimal string without
// trailing zeros.
func FormatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -StablecoinDecimals).String()
}

// Amount returns a rosetta amount for value in currency
func Amount(value *big.Int, currency *types.Currency) *types.Amount {
	if value == nil {
		return nil
	}
	return &types.Amount{
		Value:    value.String(),
		Currency: currency,
	}
}
