package service

import (
	"math/big"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/sendly/sendly-rosetta/constants"
)

var (
	usdcAddress = common.HexToAddress(constants.MainnetUSDCAddress)
	usdtAddress = common.HexToAddress(constants.MainnetUSDTAddress)
	testAccount = "0x1111111111111111111111111111111111111111"
)

// revertError carries the JSON-RPC execution reverted code.
type revertError struct{}

func (revertError) Error() string  { return "execution reverted" }
func (revertError) ErrorCode() int { return 3 }

func onlineConfig() *Config {
	return &Config{
		Mode:    constants.Online,
		ChainID: big.NewInt(constants.SepoliaChainID),
		NetworkID: &types.NetworkIdentifier{
			Blockchain: constants.BlockchainName,
			Network:    constants.SepoliaNetwork,
		},
		USDCContract: usdcAddress,
		USDTContract: usdtAddress,
	}
}

func offlineConfig() *Config {
	config := onlineConfig()
	config.Mode = constants.Offline
	return config
}

func headNumber() interface{} {
	return mock.MatchedBy(func(n *big.Int) bool { return n == nil })
}

func genesisNumber() interface{} {
	return mock.MatchedBy(func(n *big.Int) bool { return n != nil && n.Sign() == 0 })
}

func tokenID(id int64) interface{} {
	return mock.MatchedBy(func(n *big.Int) bool { return n != nil && n.Cmp(big.NewInt(id)) == 0 })
}

var anyCtx = mock.Anything
