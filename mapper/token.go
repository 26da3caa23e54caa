package mapper

import (
	"fmt"
	"strings"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/ethereum/go-ethereum/common"
)

// Token is a stablecoin a gift card can hold.
type Token string

const (
	USDC Token = "USDC"
	USDT Token = "USDT"
)

// Tokens lists the supported stablecoins in display order.
var Tokens = []Token{USDC, USDT}

func (t Token) String() string {
	return string(t)
}

// ParseToken accepts a token symbol in any casing.
func ParseToken(s string) (Token, error) {
	for _, t := range Tokens {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported token %q", s)
}

// TokenForAddress maps the ERC-20 address stored on a card to its symbol.
// Anything that is not the USDC contract is USDT.
func TokenForAddress(addr, usdc common.Address) Token {
	if strings.EqualFold(addr.Hex(), usdc.Hex()) {
		return USDC
	}
	return USDT
}

// ToCurrency returns the rosetta currency of an ERC-20 contract
func ToCurrency(symbol string, decimals int32, contractAddress common.Address) *types.Currency {
	return &types.Currency{
		Symbol:   symbol,
		Decimals: decimals,
		Metadata: map[string]interface{}{
			ContractAddressMetadata: contractAddress.Hex(),
		},
	}
}

// TokenCurrency returns the rosetta currency of a supported stablecoin.
func TokenCurrency(t Token, contractAddress common.Address) *types.Currency {
	return ToCurrency(t.String(), StablecoinDecimals, contractAddress)
}
