package service

import (
	"context"
	"fmt"

	"github.com/coinbase/rosetta-sdk-go/server"
	"github.com/coinbase/rosetta-sdk-go/types"

	"github.com/sendly/sendly-rosetta/mapper"
)

// AccountService implements the /account/* endpoints
type AccountService struct {
	config  *Config
	backend CardBackend
}

// NewAccountService returns a new account servicer
func NewAccountService(config *Config, backend CardBackend) server.AccountAPIServicer {
	return &AccountService{
		config:  config,
		backend: backend,
	}
}

type accountMetadata struct {
	GiftCardCount uint64 `json:"gift_card_count"`
}

// AccountBalance implements the /account/balance endpoint. It reports the
// stablecoin balances of the account in smallest units and the number of gift
// cards it holds.
func (s AccountService) AccountBalance(
	ctx context.Context,
	req *types.AccountBalanceRequest,
) (*types.AccountBalanceResponse, *types.Error) {
	if s.config.IsOfflineMode() {
		return nil, ErrUnavailableOffline
	}

	if req.AccountIdentifier == nil {
		return nil, WrapError(ErrInvalidInput, "account identifier is not provided")
	}
	if req.BlockIdentifier != nil {
		return nil, WrapError(ErrNotSupported, "historical balance lookup is not supported")
	}

	account, err := mapper.ParseAddress(req.AccountIdentifier.Address)
	if err != nil {
		return nil, WrapError(ErrInvalidInput, err)
	}

	tokens := mapper.Tokens
	if len(req.Currencies) > 0 {
		tokens = make([]mapper.Token, 0, len(req.Currencies))
		for _, currency := range req.Currencies {
			token, err := mapper.ParseToken(currency.Symbol)
			if err != nil {
				return nil, WrapError(ErrInvalidInput, err)
			}
			tokens = append(tokens, token)
		}
	}

	head, err := s.backend.Header(ctx, nil)
	if err != nil {
		return nil, backendError(err)
	}

	balances := make([]*types.Amount, 0, len(tokens))
	for _, token := range tokens {
		balance, err := s.backend.TokenBalance(ctx, account, token)
		if err != nil {
			return nil, backendError(fmt.Errorf("%s balance: %w", token, err))
		}
		balances = append(balances, mapper.Amount(balance, s.config.TokenCurrency(token)))
	}

	count, err := s.backend.BalanceCount(ctx, account)
	if err != nil {
		return nil, backendError(err)
	}
	metadata, err := mapper.MarshalJSONMap(accountMetadata{GiftCardCount: count})
	if err != nil {
		return nil, WrapError(ErrInternalError, err)
	}

	return &types.AccountBalanceResponse{
		BlockIdentifier: blockIdentifier(head),
		Balances:        balances,
		Metadata:        metadata,
	}, nil
}

// AccountCoins implements the /account/coins endpoint
func (s AccountService) AccountCoins(
	ctx context.Context,
	req *types.AccountCoinsRequest,
) (*types.AccountCoinsResponse, *types.Error) {
	return nil, ErrNotImplemented
}
