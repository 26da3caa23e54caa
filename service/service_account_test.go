package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sendly/sendly-rosetta/mapper"
)

func TestAccountBalance(t *testing.T) {
	account := common.HexToAddress(testAccount)
	head := &ethtypes.Header{Number: big.NewInt(42)}

	balanceRequest := func(currencies ...*types.Currency) *types.AccountBalanceRequest {
		return &types.AccountBalanceRequest{
			AccountIdentifier: &types.AccountIdentifier{Address: testAccount},
			Currencies:        currencies,
		}
	}

	t.Run("offline", func(t *testing.T) {
		service := NewAccountService(offlineConfig(), newMockCardBackend(t))

		resp, err := service.AccountBalance(context.Background(), balanceRequest())
		assert.Nil(t, resp)
		assert.Equal(t, ErrUnavailableOffline, err)
	})

	t.Run("input validation", func(t *testing.T) {
		service := NewAccountService(onlineConfig(), newMockCardBackend(t))

		_, err := service.AccountBalance(context.Background(), &types.AccountBalanceRequest{})
		assert.Equal(t, ErrInvalidInput.Code, err.Code)

		req := balanceRequest()
		req.BlockIdentifier = &types.PartialBlockIdentifier{}
		_, err = service.AccountBalance(context.Background(), req)
		assert.Equal(t, ErrNotSupported.Code, err.Code)

		req = balanceRequest()
		req.AccountIdentifier.Address = "0x123"
		_, err = service.AccountBalance(context.Background(), req)
		assert.Equal(t, ErrInvalidInput.Code, err.Code)

		_, err = service.AccountBalance(context.Background(), balanceRequest(&types.Currency{Symbol: "DAI", Decimals: 18}))
		assert.Equal(t, ErrInvalidInput.Code, err.Code)
	})

	t.Run("all stablecoins", func(t *testing.T) {
		backend := newMockCardBackend(t)
		service := NewAccountService(onlineConfig(), backend)

		backend.On("Header", anyCtx, headNumber()).Return(head, nil).Once()
		backend.On("TokenBalance", anyCtx, account, mapper.USDC).Return(big.NewInt(1_500_000), nil).Once()
		backend.On("TokenBalance", anyCtx, account, mapper.USDT).Return(big.NewInt(0), nil).Once()
		backend.On("BalanceCount", anyCtx, account).Return(uint64(3), nil).Once()

		resp, err := service.AccountBalance(context.Background(), balanceRequest())
		assert.Nil(t, err)
		assert.Equal(t, int64(42), resp.BlockIdentifier.Index)
		assert.Equal(t, []*types.Amount{
			{Value: "1500000", Currency: mapper.TokenCurrency(mapper.USDC, usdcAddress)},
			{Value: "0", Currency: mapper.TokenCurrency(mapper.USDT, usdtAddress)},
		}, resp.Balances)
		assert.Equal(t, float64(3), resp.Metadata["gift_card_count"])
	})

	t.Run("currency filter", func(t *testing.T) {
		backend := newMockCardBackend(t)
		service := NewAccountService(onlineConfig(), backend)

		backend.On("Header", anyCtx, headNumber()).Return(head, nil).Once()
		backend.On("TokenBalance", anyCtx, account, mapper.USDT).Return(big.NewInt(7), nil).Once()
		backend.On("BalanceCount", anyCtx, account).Return(uint64(0), nil).Once()

		resp, err := service.AccountBalance(context.Background(), balanceRequest(&types.Currency{Symbol: "usdt", Decimals: 6}))
		assert.Nil(t, err)
		assert.Len(t, resp.Balances, 1)
		assert.Equal(t, "USDT", resp.Balances[0].Currency.Symbol)
		assert.Equal(t, "7", resp.Balances[0].Value)
		backend.AssertNotCalled(t, "TokenBalance", mock.Anything, account, mapper.USDC)
	})

	t.Run("backend failure", func(t *testing.T) {
		backend := newMockCardBackend(t)
		service := NewAccountService(onlineConfig(), backend)

		backend.On("Header", anyCtx, headNumber()).Return(head, nil).Once()
		backend.On("TokenBalance", anyCtx, account, mapper.USDC).Return(nil, errors.New("timeout")).Once()

		resp, err := service.AccountBalance(context.Background(), balanceRequest())
		assert.Nil(t, resp)
		assert.Equal(t, ErrClientError.Code, err.Code)
		assert.Contains(t, err.Details["error"], "USDC balance")
	})
}

func TestAccountCoins(t *testing.T) {
	service := NewAccountService(onlineConfig(), newMockCardBackend(t))

	resp, err := service.AccountCoins(context.Background(), &types.AccountCoinsRequest{})
	assert.Nil(t, resp)
	assert.Equal(t, ErrNotImplemented, err)
}
