package giftcard

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/mapper"
)

// Cache key kinds, also used as metric labels.
const (
	kindOwnedCards   = "giftCards"
	kindSentCards    = "sentGiftCards"
	kindCardInfo     = "giftCardInfo"
	kindCardOwner    = "cardOwner"
	kindCardCreator  = "cardCreator"
	kindTokenBalance = "tokenBalance"
)

func ownedCardsKey(account common.Address) string {
	return kindOwnedCards + ":" + account.Hex()
}

func sentCardsKey(account common.Address) string {
	return kindSentCards + ":" + account.Hex()
}

func cardInfoKey(tokenID *big.Int) string {
	return kindCardInfo + ":" + tokenID.String()
}

func cardOwnerKey(tokenID *big.Int) string {
	return kindCardOwner + ":" + tokenID.String()
}

func cardCreatorKey(tokenID *big.Int) string {
	return kindCardCreator + ":" + tokenID.String()
}

func tokenBalanceKey(token mapper.Token, account common.Address) string {
	return kindTokenBalance + ":" + token.String() + ":" + account.Hex()
}
