package giftcard

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

// Config holds the backend configuration
type Config struct {
	ChainID          *big.Int
	GiftCardContract common.Address
	USDCContract     common.Address
	USDTContract     common.Address

	LookbackBlocks uint64
	BatchSize      int
	CacheTTL       time.Duration
	CacheSize      int
	LoadTimeout    time.Duration

	ReceiptPollInterval time.Duration
	ConfirmationTimeout time.Duration
}

// ApplyDefaults fills zero values with the package defaults
func (c *Config) ApplyDefaults() {
	if c.LookbackBlocks == 0 {
		c.LookbackBlocks = constants.LookbackBlocks
	}
	if c.BatchSize <= 0 {
		c.BatchSize = constants.BatchSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = constants.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = constants.CacheSize
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = constants.LoadTimeout
	}
	if c.ReceiptPollInterval <= 0 {
		c.ReceiptPollInterval = constants.ReceiptPollInterval
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = constants.ConfirmationTimeout
	}
}

// TokenAddress returns the stablecoin contract for token
func (c Config) TokenAddress(token mapper.Token) (common.Address, error) {
	switch token {
	case mapper.USDC:
		return c.USDCContract, nil
	case mapper.USDT:
		return c.USDTContract, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %q", ErrUnsupportedToken, token)
	}
}
