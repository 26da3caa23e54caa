package giftcard

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

// Header returns the block header at number, or the latest one when number
// is nil.
func (b *Backend) Header(ctx context.Context, number *big.Int) (*types.Header, error) {
	header, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("%w: header not found", ErrUnexpectedResponse)
	}
	return header, nil
}

// BalanceCount returns the number of gift cards owned by account.
func (b *Backend) BalanceCount(ctx context.Context, account common.Address) (uint64, error) {
	out, err := b.call(ctx, b.config.GiftCardContract, client.GiftCardABI, "balanceOf", account)
	if err != nil {
		return 0, err
	}
	count, err := uint256Output(out[0], "balanceOf")
	if err != nil {
		return 0, err
	}
	if !count.IsUint64() {
		return 0, fmt.Errorf("%w: balanceOf out of range", ErrUnexpectedResponse)
	}
	return count.Uint64(), nil
}

// OwnedCards returns the cards currently owned by account, in enumeration
// order. Cards that fail to load are left out.
func (b *Backend) OwnedCards(ctx context.Context, account common.Address) ([]*Card, error) {
	return cached(ctx, b, kindOwnedCards, ownedCardsKey(account), func(ctx context.Context) ([]*Card, error) {
		return b.loadOwnedCards(ctx, account)
	})
}

func (b *Backend) loadOwnedCards(ctx context.Context, account common.Address) ([]*Card, error) {
	count, err := b.BalanceCount(ctx, account)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []*Card{}, nil
	}

	tokenIDs := make([]*big.Int, 0, count)
	for i := uint64(0); i < count; i++ {
		tokenID, err := b.tokenOfOwnerByIndex(ctx, account, i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn().Err(err).Uint64("index", i).Stringer("account", account).Msg("failed to get token id")
			continue
		}
		tokenIDs = append(tokenIDs, tokenID)
	}

	return b.collect(ctx, len(tokenIDs), func(ctx context.Context, i int) (*Card, error) {
		tokenID := tokenIDs[i]
		info, err := b.CardInfo(ctx, tokenID)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", tokenID, err)
		}

		sender, confidence := constants.UnknownSender, ConfidenceUnknown
		creator, err := b.CardCreator(ctx, tokenID)
		if err != nil {
			b.logger.Warn().Err(err).Stringer("token_id", tokenID).Msg("could not resolve card creator")
		} else {
			sender, confidence = creator.Address.Hex(), creator.Confidence
		}

		return b.card(tokenID, info, account.Hex(), sender, confidence, DirectionReceived), nil
	})
}

func (b *Backend) tokenOfOwnerByIndex(ctx context.Context, account common.Address, index uint64) (*big.Int, error) {
	out, err := b.call(ctx, b.config.GiftCardContract, client.GiftCardABI,
		"tokenOfOwnerByIndex", account, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	return uint256Output(out[0], "tokenOfOwnerByIndex")
}

// SentCards returns the cards transferred out of account inside the lookback
// window, in log order. Cards that fail to load are left out.
func (b *Backend) SentCards(ctx context.Context, account common.Address) ([]*Card, error) {
	return cached(ctx, b, kindSentCards, sentCardsKey(account), func(ctx context.Context) ([]*Card, error) {
		return b.loadSentCards(ctx, account)
	})
}

func (b *Backend) loadSentCards(ctx context.Context, account common.Address) ([]*Card, error) {
	events, err := b.transfers(ctx, &account, nil)
	if err != nil {
		return nil, err
	}

	return b.collect(ctx, len(events), func(ctx context.Context, i int) (*Card, error) {
		event := events[i]
		info, err := b.CardInfo(ctx, event.TokenID)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", event.TokenID, err)
		}
		return b.card(event.TokenID, info, event.To.Hex(), account.Hex(), ConfidenceResolved, DirectionSent), nil
	})
}

// collect loads n cards on at most BatchSize goroutines. Results keep the
// index order; failed cards are logged and dropped.
func (b *Backend) collect(ctx context.Context, n int, load func(ctx context.Context, i int) (*Card, error)) ([]*Card, error) {
	results := make([]*Card, n)

	var g errgroup.Group
	g.SetLimit(b.config.BatchSize)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			card, err := load(ctx, i)
			if err != nil {
				b.logger.Warn().Err(err).Int("index", i).Msg("dropping card")
				return nil
			}
			results[i] = card
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cards := make([]*Card, 0, n)
	for _, card := range results {
		if card != nil {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (b *Backend) card(
	tokenID *big.Int,
	info *CardInfo,
	recipient string,
	sender string,
	confidence Confidence,
	direction Direction,
) *Card {
	return &Card{
		TokenID:          tokenID.String(),
		Recipient:        recipient,
		Sender:           sender,
		SenderConfidence: confidence,
		Amount:           mapper.FormatAmount(info.Amount),
		Token:            mapper.TokenForAddress(info.Token, b.config.USDCContract),
		Message:          info.Message,
		Redeemed:         info.Redeemed,
		Direction:        direction,
	}
}

// CardInfo returns the on-chain record of a card.
func (b *Backend) CardInfo(ctx context.Context, tokenID *big.Int) (*CardInfo, error) {
	return cached(ctx, b, kindCardInfo, cardInfoKey(tokenID), func(ctx context.Context) (*CardInfo, error) {
		return b.loadCardInfo(ctx, tokenID)
	})
}

func (b *Backend) loadCardInfo(ctx context.Context, tokenID *big.Int) (*CardInfo, error) {
	out, err := b.call(ctx, b.config.GiftCardContract, client.GiftCardABI, "getGiftCardInfo", tokenID)
	if err != nil {
		return nil, err
	}

	amount, err := uint256Output(out[0], "getGiftCardInfo")
	if err != nil {
		return nil, err
	}
	token, ok := out[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: getGiftCardInfo token is %T", ErrUnexpectedResponse, out[1])
	}
	redeemed, ok := out[2].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: getGiftCardInfo redeemed is %T", ErrUnexpectedResponse, out[2])
	}
	message, ok := out[3].(string)
	if !ok {
		return nil, fmt.Errorf("%w: getGiftCardInfo message is %T", ErrUnexpectedResponse, out[3])
	}

	return &CardInfo{
		Amount:   amount,
		Token:    token,
		Redeemed: redeemed,
		Message:  message,
	}, nil
}

// CardOwner returns the current owner of a card.
func (b *Backend) CardOwner(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return cached(ctx, b, kindCardOwner, cardOwnerKey(tokenID), func(ctx context.Context) (common.Address, error) {
		return b.loadCardOwner(ctx, tokenID)
	})
}

func (b *Backend) loadCardOwner(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := b.call(ctx, b.config.GiftCardContract, client.GiftCardABI, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: ownerOf is %T", ErrUnexpectedResponse, out[0])
	}
	return owner, nil
}

// CardCreator returns the account a card was minted to. When the mint is not
// found inside the lookback window the current owner is returned instead,
// tagged ConfidenceApproximated.
func (b *Backend) CardCreator(ctx context.Context, tokenID *big.Int) (*Creator, error) {
	return cached(ctx, b, kindCardCreator, cardCreatorKey(tokenID), func(ctx context.Context) (*Creator, error) {
		return b.loadCardCreator(ctx, tokenID)
	})
}

func (b *Backend) loadCardCreator(ctx context.Context, tokenID *big.Int) (*Creator, error) {
	events, err := b.transfers(ctx, nil, tokenID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.logger.Warn().Err(err).Stringer("token_id", tokenID).Msg("mint scan failed, falling back to owner")
	}
	for _, event := range events {
		if event.From == (common.Address{}) && event.TokenID.Cmp(tokenID) == 0 {
			return &Creator{Address: event.To, Confidence: ConfidenceResolved}, nil
		}
	}

	owner, err := b.CardOwner(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return &Creator{Address: owner, Confidence: ConfidenceApproximated}, nil
}

// TokenBalance returns the stablecoin balance of account in smallest units.
func (b *Backend) TokenBalance(ctx context.Context, account common.Address, token mapper.Token) (*big.Int, error) {
	contract, err := b.config.TokenAddress(token)
	if err != nil {
		return nil, err
	}
	return cached(ctx, b, kindTokenBalance, tokenBalanceKey(token, account), func(ctx context.Context) (*big.Int, error) {
		return b.erc20Balance(ctx, contract, account)
	})
}

func (b *Backend) erc20Balance(ctx context.Context, contract, account common.Address) (*big.Int, error) {
	out, err := b.call(ctx, contract, client.ERC20ABI, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return uint256Output(out[0], "balanceOf")
}

func uint256Output(v interface{}, method string) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedResponse, method, v)
	}
	return n, nil
}
