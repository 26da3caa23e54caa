package service

import (
	"context"
	"math/big"

	"github.com/coinbase/rosetta-sdk-go/server"
	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/mapper"
)

const (
	CallGiftCardInfo      = "giftcard_info"
	CallGiftCardOwner     = "giftcard_owner"
	CallGiftCardCreator   = "giftcard_creator"
	CallGiftCardsReceived = "giftcards_received"
	CallGiftCardsSent     = "giftcards_sent"
	CallGiftCardsBalance  = "giftcards_balance"
	CallCacheClear        = "cache_clear"
)

// CallMethods lists the methods served by /call
var CallMethods = []string{
	CallGiftCardInfo,
	CallGiftCardOwner,
	CallGiftCardCreator,
	CallGiftCardsReceived,
	CallGiftCardsSent,
	CallGiftCardsBalance,
	CallCacheClear,
}

// CallService implements /call/* endpoints
type CallService struct {
	config  *Config
	backend CardBackend
}

// TokenInput is the input of the per-card call methods.
type TokenInput struct {
	TokenID string `json:"token_id"`
}

// AccountInput is the input of the per-account call methods.
type AccountInput struct {
	Account string `json:"account"`
}

type cardInfoOutput struct {
	TokenID      string       `json:"token_id"`
	Amount       string       `json:"amount"`
	AmountRaw    string       `json:"amount_raw"`
	Token        mapper.Token `json:"token"`
	TokenAddress string       `json:"token_address"`
	Redeemed     bool         `json:"redeemed"`
	Message      string       `json:"message"`
}

type ownerOutput struct {
	Owner string `json:"owner"`
}

type creatorOutput struct {
	Creator    string              `json:"creator"`
	Confidence giftcard.Confidence `json:"confidence"`
}

type cardsOutput struct {
	Cards []*giftcard.Card `json:"cards"`
}

type balanceOutput struct {
	Count uint64 `json:"count"`
	USDC  string `json:"usdc"`
	USDT  string `json:"usdt"`
}

type cacheClearOutput struct {
	Cleared bool `json:"cleared"`
}

// NewCallService returns a new call servicer
func NewCallService(config *Config, backend CardBackend) server.CallAPIServicer {
	return &CallService{
		config:  config,
		backend: backend,
	}
}

// Call implements the /call endpoint.
func (s CallService) Call(ctx context.Context, req *types.CallRequest) (*types.CallResponse, *types.Error) {
	if s.config.IsOfflineMode() {
		return nil, ErrUnavailableOffline
	}

	var (
		output interface{}
		terr   *types.Error
	)
	switch req.Method {
	case CallGiftCardInfo:
		output, terr = s.callGiftCardInfo(ctx, req)
	case CallGiftCardOwner:
		output, terr = s.callGiftCardOwner(ctx, req)
	case CallGiftCardCreator:
		output, terr = s.callGiftCardCreator(ctx, req)
	case CallGiftCardsReceived:
		output, terr = s.callCards(ctx, req, s.backend.OwnedCards)
	case CallGiftCardsSent:
		output, terr = s.callCards(ctx, req, s.backend.SentCards)
	case CallGiftCardsBalance:
		output, terr = s.callGiftCardsBalance(ctx, req)
	case CallCacheClear:
		s.backend.ClearCache()
		output = cacheClearOutput{Cleared: true}
	default:
		return nil, ErrCallInvalidMethod
	}
	if terr != nil {
		return nil, terr
	}

	result, err := mapper.MarshalJSONMap(output)
	if err != nil {
		return nil, WrapError(ErrInternalError, err)
	}
	return &types.CallResponse{Result: result}, nil
}

func (s CallService) callGiftCardInfo(ctx context.Context, req *types.CallRequest) (interface{}, *types.Error) {
	tokenID, terr := tokenIDParam(req)
	if terr != nil {
		return nil, terr
	}

	info, err := s.backend.CardInfo(ctx, tokenID)
	if err != nil {
		return nil, backendError(err)
	}

	return cardInfoOutput{
		TokenID:      tokenID.String(),
		Amount:       mapper.FormatAmount(info.Amount),
		AmountRaw:    info.Amount.String(),
		Token:        mapper.TokenForAddress(info.Token, s.config.USDCContract),
		TokenAddress: info.Token.Hex(),
		Redeemed:     info.Redeemed,
		Message:      info.Message,
	}, nil
}

func (s CallService) callGiftCardOwner(ctx context.Context, req *types.CallRequest) (interface{}, *types.Error) {
	tokenID, terr := tokenIDParam(req)
	if terr != nil {
		return nil, terr
	}

	owner, err := s.backend.CardOwner(ctx, tokenID)
	if err != nil {
		return nil, backendError(err)
	}
	return ownerOutput{Owner: owner.Hex()}, nil
}

func (s CallService) callGiftCardCreator(ctx context.Context, req *types.CallRequest) (interface{}, *types.Error) {
	tokenID, terr := tokenIDParam(req)
	if terr != nil {
		return nil, terr
	}

	creator, err := s.backend.CardCreator(ctx, tokenID)
	if err != nil {
		return nil, backendError(err)
	}
	return creatorOutput{Creator: creator.Address.Hex(), Confidence: creator.Confidence}, nil
}

func (s CallService) callCards(
	ctx context.Context,
	req *types.CallRequest,
	load func(context.Context, common.Address) ([]*giftcard.Card, error),
) (interface{}, *types.Error) {
	account, terr := accountParam(req)
	if terr != nil {
		return nil, terr
	}

	cards, err := load(ctx, account)
	if err != nil {
		return nil, backendError(err)
	}
	return cardsOutput{Cards: cards}, nil
}

func (s CallService) callGiftCardsBalance(ctx context.Context, req *types.CallRequest) (interface{}, *types.Error) {
	account, terr := accountParam(req)
	if terr != nil {
		return nil, terr
	}

	count, err := s.backend.BalanceCount(ctx, account)
	if err != nil {
		return nil, backendError(err)
	}
	usdc, err := s.backend.TokenBalance(ctx, account, mapper.USDC)
	if err != nil {
		return nil, backendError(err)
	}
	usdt, err := s.backend.TokenBalance(ctx, account, mapper.USDT)
	if err != nil {
		return nil, backendError(err)
	}

	return balanceOutput{
		Count: count,
		USDC:  mapper.FormatAmount(usdc),
		USDT:  mapper.FormatAmount(usdt),
	}, nil
}

func tokenIDParam(req *types.CallRequest) (*big.Int, *types.Error) {
	var input TokenInput
	if err := types.UnmarshalMap(req.Parameters, &input); err != nil {
		return nil, WrapError(ErrCallInvalidParams, err)
	}
	if len(input.TokenID) == 0 {
		return nil, WrapError(ErrCallInvalidParams, "token_id missing from params")
	}

	tokenID, err := mapper.ParseTokenID(input.TokenID)
	if err != nil {
		return nil, WrapError(ErrCallInvalidParams, err)
	}
	return tokenID, nil
}

func accountParam(req *types.CallRequest) (common.Address, *types.Error) {
	var input AccountInput
	if err := types.UnmarshalMap(req.Parameters, &input); err != nil {
		return common.Address{}, WrapError(ErrCallInvalidParams, err)
	}
	if len(input.Account) == 0 {
		return common.Address{}, WrapError(ErrCallInvalidParams, "account missing from params")
	}

	account, err := mapper.ParseAddress(input.Account)
	if err != nil {
		return common.Address{}, WrapError(ErrCallInvalidParams, err)
	}
	return account, nil
}
