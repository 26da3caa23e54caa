package client

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the subset of the Ethereum JSON-RPC API used against a single
// endpoint. *ethclient.Client satisfies it.
type Client interface {
	ChainID(context.Context) (*big.Int, error)
	BlockNumber(context.Context) (uint64, error)
	HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error)
	CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error)
	FilterLogs(context.Context, ethereum.FilterQuery) ([]ethtypes.Log, error)
	PendingNonceAt(context.Context, common.Address) (uint64, error)
	SuggestGasPrice(context.Context) (*big.Int, error)
	EstimateGas(context.Context, ethereum.CallMsg) (uint64, error)
	SendTransaction(context.Context, *ethtypes.Transaction) error
	TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error)
	Close()
}

// DialFunc builds a Client bound to one endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Client, error)

// DialEth returns a go-ethereum client for the endpoint
func DialEth(ctx context.Context, endpoint string) (Client, error) {
	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}
