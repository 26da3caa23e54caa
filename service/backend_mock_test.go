package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/mapper"
)

type mockCardBackend struct {
	mock.Mock
}

var _ CardBackend = &mockCardBackend{}

func newMockCardBackend(t interface {
	mock.TestingT
	Cleanup(func())
},
) *mockCardBackend {
	m := &mockCardBackend{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockCardBackend) Header(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	ret := m.Called(ctx, number)
	header, _ := ret.Get(0).(*ethtypes.Header)
	return header, ret.Error(1)
}

func (m *mockCardBackend) BalanceCount(ctx context.Context, account common.Address) (uint64, error) {
	ret := m.Called(ctx, account)
	return ret.Get(0).(uint64), ret.Error(1)
}

func (m *mockCardBackend) OwnedCards(ctx context.Context, account common.Address) ([]*giftcard.Card, error) {
	ret := m.Called(ctx, account)
	cards, _ := ret.Get(0).([]*giftcard.Card)
	return cards, ret.Error(1)
}

func (m *mockCardBackend) SentCards(ctx context.Context, account common.Address) ([]*giftcard.Card, error) {
	ret := m.Called(ctx, account)
	cards, _ := ret.Get(0).([]*giftcard.Card)
	return cards, ret.Error(1)
}

func (m *mockCardBackend) CardInfo(ctx context.Context, tokenID *big.Int) (*giftcard.CardInfo, error) {
	ret := m.Called(ctx, tokenID)
	info, _ := ret.Get(0).(*giftcard.CardInfo)
	return info, ret.Error(1)
}

func (m *mockCardBackend) CardOwner(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	ret := m.Called(ctx, tokenID)
	return ret.Get(0).(common.Address), ret.Error(1)
}

func (m *mockCardBackend) CardCreator(ctx context.Context, tokenID *big.Int) (*giftcard.Creator, error) {
	ret := m.Called(ctx, tokenID)
	creator, _ := ret.Get(0).(*giftcard.Creator)
	return creator, ret.Error(1)
}

func (m *mockCardBackend) TokenBalance(ctx context.Context, account common.Address, token mapper.Token) (*big.Int, error) {
	ret := m.Called(ctx, account, token)
	balance, _ := ret.Get(0).(*big.Int)
	return balance, ret.Error(1)
}

func (m *mockCardBackend) ClearCache() {
	m.Called()
}
