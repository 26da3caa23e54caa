package mapper

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidTokenID = errors.New("invalid token id")
)

// ParseAddress validates a hex account address.
func ParseAddress(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, ErrInvalidAddress
	}
	return ethcommon.HexToAddress(s), nil
}

// ParseTokenID parses a decimal, non-negative token id.
func ParseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, ErrInvalidTokenID
	}
	return id, nil
}
