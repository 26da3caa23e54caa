package client

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const contractCacheSize = 1024

// ContractClient looks up ERC-20 currency information
type ContractClient struct {
	exec  *Executor
	cache *cache.LRU
}

// NewContractClient returns a new ContractClient reading through exec
func NewContractClient(exec *Executor) *ContractClient {
	return &ContractClient{
		exec:  exec,
		cache: &cache.LRU{Size: contractCacheSize},
	}
}

// ContractCurrency returns the currency for a specific address
func (c *ContractClient) ContractCurrency(ctx context.Context, addr common.Address) (*ContractCurrency, error) {
	if currency, cached := c.cache.Get(addr); cached {
		return currency.(*ContractCurrency), nil
	}

	symbol, symbolErr := c.symbol(ctx, addr)
	decimals, decimalErr := c.decimals(ctx, addr)

	// Only a fully failed lookup is an error, partial answers fall back to defaults.
	if symbolErr != nil && decimalErr != nil && !IsRevert(symbolErr) {
		return nil, symbolErr
	}

	// Any of these indicate a failure to get complete information from contract
	if symbolErr != nil || decimalErr != nil || symbol == "" || decimals == 0 {
		symbol = UnknownERC20Symbol
		decimals = UnknownERC20Decimals
	}

	currency := &ContractCurrency{
		Symbol:   symbol,
		Decimals: int32(decimals),
	}

	// Cache defaults for contract address to avoid unnecessary lookups
	c.cache.Put(addr, currency)
	return currency, nil
}

func (c *ContractClient) symbol(ctx context.Context, addr common.Address) (string, error) {
	out, err := c.call(ctx, addr, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected type %T", out[0])
	}
	return symbol, nil
}

func (c *ContractClient) decimals(ctx context.Context, addr common.Address) (uint8, error) {
	out, err := c.call(ctx, addr, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return decimals, nil
}

func (c *ContractClient) call(ctx context.Context, addr common.Address, method string) ([]interface{}, error) {
	data, err := ERC20ABI.Pack(method)
	if err != nil {
		return nil, err
	}

	raw, err := Execute(ctx, c.exec, func(ctx context.Context, cl Client) ([]byte, error) {
		return cl.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}

	out, err := ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	return out, nil
}
