package giftcard

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/sendly/sendly-rosetta/mapper"
)

var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyRedeemed     = errors.New("gift card already redeemed")
	ErrNotOwner            = errors.New("gift card is not owned by the connected account")
	ErrUnsupportedToken    = errors.New("unsupported token")
	ErrUnexpectedResponse  = errors.New("unexpected contract response")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")

	ErrInvalidAmount  = mapper.ErrInvalidAmount
	ErrInvalidAddress = mapper.ErrInvalidAddress
	ErrInvalidTokenID = mapper.ErrInvalidTokenID
)

// InsufficientBalanceError reports a stablecoin balance below the amount
// needed for a card.
type InsufficientBalanceError struct {
	Token mapper.Token
	Need  *big.Int
	Have  *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %s, have %s",
		e.Token, mapper.FormatAmount(e.Need), mapper.FormatAmount(e.Have))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
