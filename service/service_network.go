package service

import (
	"context"
	"math/big"

	"github.com/coinbase/rosetta-sdk-go/server"
	"github.com/coinbase/rosetta-sdk-go/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/sendly/sendly-rosetta/mapper"
)

const seconds2milliseconds = 1000

// NetworkService implements all /network endpoints
type NetworkService struct {
	config  *Config
	backend CardBackend
}

// NewNetworkService returns a new network servicer
func NewNetworkService(config *Config, backend CardBackend) server.NetworkAPIServicer {
	return &NetworkService{
		config:  config,
		backend: backend,
	}
}

// NetworkList implements the /network/list endpoint
func (s *NetworkService) NetworkList(
	ctx context.Context,
	request *types.MetadataRequest,
) (*types.NetworkListResponse, *types.Error) {
	return &types.NetworkListResponse{
		NetworkIdentifiers: []*types.NetworkIdentifier{
			s.config.NetworkID,
		},
	}, nil
}

// NetworkStatus implements the /network/status endpoint
func (s *NetworkService) NetworkStatus(
	ctx context.Context,
	request *types.NetworkRequest,
) (*types.NetworkStatusResponse, *types.Error) {
	if s.config.IsOfflineMode() {
		return nil, ErrUnavailableOffline
	}

	head, err := s.backend.Header(ctx, nil)
	if err != nil {
		return nil, backendError(err)
	}
	genesis, err := s.backend.Header(ctx, big.NewInt(0))
	if err != nil {
		return nil, backendError(err)
	}

	synced := true
	return &types.NetworkStatusResponse{
		CurrentBlockTimestamp:  int64(head.Time * seconds2milliseconds),
		CurrentBlockIdentifier: blockIdentifier(head),
		GenesisBlockIdentifier: blockIdentifier(genesis),
		SyncStatus:             &types.SyncStatus{Synced: &synced},
		Peers:                  []*types.Peer{},
	}, nil
}

// NetworkOptions implements the /network/options endpoint
func (s *NetworkService) NetworkOptions(
	ctx context.Context,
	request *types.NetworkRequest,
) (*types.NetworkOptionsResponse, *types.Error) {
	middlewareVersion := MiddlewareVersion
	return &types.NetworkOptionsResponse{
		Version: &types.Version{
			RosettaVersion:    types.RosettaAPIVersion,
			NodeVersion:       NodeVersion,
			MiddlewareVersion: &middlewareVersion,
		},
		Allow: &types.Allow{
			OperationStatuses:       mapper.OperationStatuses,
			OperationTypes:          mapper.OperationTypes,
			Errors:                  Errors,
			HistoricalBalanceLookup: false,
			CallMethods:             CallMethods,
		},
	}, nil
}

func blockIdentifier(header *ethtypes.Header) *types.BlockIdentifier {
	return &types.BlockIdentifier{
		Index: header.Number.Int64(),
		Hash:  header.Hash().Hex(),
	}
}
