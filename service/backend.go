package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/mapper"
)

// CardBackend is the chain read facade the servicers are built on
type CardBackend interface {
	Header(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	BalanceCount(ctx context.Context, account common.Address) (uint64, error)
	OwnedCards(ctx context.Context, account common.Address) ([]*giftcard.Card, error)
	SentCards(ctx context.Context, account common.Address) ([]*giftcard.Card, error)
	CardInfo(ctx context.Context, tokenID *big.Int) (*giftcard.CardInfo, error)
	CardOwner(ctx context.Context, tokenID *big.Int) (common.Address, error)
	CardCreator(ctx context.Context, tokenID *big.Int) (*giftcard.Creator, error)
	TokenBalance(ctx context.Context, account common.Address, token mapper.Token) (*big.Int, error)
	ClearCache()
}

var _ CardBackend = &giftcard.Backend{}
