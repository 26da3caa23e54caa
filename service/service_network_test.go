package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/coinbase/rosetta-sdk-go/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"

	"github.com/sendly/sendly-rosetta/mapper"
)

func TestNetworkList(t *testing.T) {
	service := NewNetworkService(onlineConfig(), newMockCardBackend(t))

	resp, err := service.NetworkList(context.Background(), &types.MetadataRequest{})
	assert.Nil(t, err)
	assert.Len(t, resp.NetworkIdentifiers, 1)
	assert.Equal(t, "Base", resp.NetworkIdentifiers[0].Blockchain)
	assert.Equal(t, "Sepolia", resp.NetworkIdentifiers[0].Network)
}

func TestNetworkStatus(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		service := NewNetworkService(offlineConfig(), newMockCardBackend(t))

		resp, err := service.NetworkStatus(context.Background(), &types.NetworkRequest{})
		assert.Nil(t, resp)
		assert.Equal(t, ErrUnavailableOffline, err)
	})

	t.Run("reports head and genesis", func(t *testing.T) {
		backend := newMockCardBackend(t)
		service := NewNetworkService(onlineConfig(), backend)

		head := &ethtypes.Header{Number: big.NewInt(1234), Time: 1_700_000_000}
		genesis := &ethtypes.Header{Number: big.NewInt(0), Time: 1_600_000_000}
		backend.On("Header", anyCtx, headNumber()).Return(head, nil).Once()
		backend.On("Header", anyCtx, genesisNumber()).Return(genesis, nil).Once()

		resp, err := service.NetworkStatus(context.Background(), &types.NetworkRequest{})
		assert.Nil(t, err)
		assert.Equal(t, int64(1_700_000_000_000), resp.CurrentBlockTimestamp)
		assert.Equal(t, int64(1234), resp.CurrentBlockIdentifier.Index)
		assert.Equal(t, head.Hash().Hex(), resp.CurrentBlockIdentifier.Hash)
		assert.Equal(t, int64(0), resp.GenesisBlockIdentifier.Index)
		assert.True(t, *resp.SyncStatus.Synced)
		assert.Empty(t, resp.Peers)
	})

	t.Run("client failure is retriable", func(t *testing.T) {
		backend := newMockCardBackend(t)
		service := NewNetworkService(onlineConfig(), backend)
		backend.On("Header", anyCtx, headNumber()).Return(nil, errors.New("connection refused")).Once()

		resp, err := service.NetworkStatus(context.Background(), &types.NetworkRequest{})
		assert.Nil(t, resp)
		assert.Equal(t, ErrClientError.Code, err.Code)
		assert.True(t, err.Retriable)
	})
}

func TestNetworkOptions(t *testing.T) {
	service := NewNetworkService(offlineConfig(), newMockCardBackend(t))

	resp, err := service.NetworkOptions(context.Background(), &types.NetworkRequest{})
	assert.Nil(t, err)
	assert.Equal(t, types.RosettaAPIVersion, resp.Version.RosettaVersion)
	assert.Equal(t, MiddlewareVersion, *resp.Version.MiddlewareVersion)
	assert.Equal(t, mapper.OperationTypes, resp.Allow.OperationTypes)
	assert.Equal(t, CallMethods, resp.Allow.CallMethods)
	assert.Equal(t, Errors, resp.Allow.Errors)
	assert.False(t, resp.Allow.HistoricalBalanceLookup)
}
