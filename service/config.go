package service

import (
	"math/big"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

// Config holds the service configuration
type Config struct {
	Mode         constants.NodeMode
	ChainID      *big.Int
	NetworkID    *types.NetworkIdentifier
	USDCContract common.Address
	USDTContract common.Address
}

// IsOfflineMode returns true if running in offline mode
func (c Config) IsOfflineMode() bool {
	return c.Mode == constants.Offline
}

// IsOnlineMode returns true if running in online mode
func (c Config) IsOnlineMode() bool {
	return c.Mode == constants.Online
}

// TokenCurrency returns the rosetta currency of a supported stablecoin
func (c Config) TokenCurrency(token mapper.Token) *types.Currency {
	if token == mapper.USDC {
		return mapper.TokenCurrency(token, c.USDCContract)
	}
	return mapper.TokenCurrency(token, c.USDTContract)
}
