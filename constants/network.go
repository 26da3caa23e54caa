package constants

const (
	BlockchainName = "Base"

	MainnetChainID = 8453
	MainnetNetwork = "Mainnet"

	SepoliaChainID = 84532
	SepoliaNetwork = "Sepolia"

	// Stablecoin deployments on Base mainnet.
	MainnetUSDCAddress = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	MainnetUSDTAddress = "0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"
)

// MainnetRPCEndpoints are public Base endpoints, in failover order.
var MainnetRPCEndpoints = []string{
	"https://mainnet.base.org",
	"https://base.llamarpc.com",
	"https://base-rpc.publicnode.com",
	"https://1rpc.io/base",
}

// SepoliaRPCEndpoints are public Base Sepolia endpoints, in failover order.
var SepoliaRPCEndpoints = []string{
	"https://sepolia.base.org",
	"https://base-sepolia-rpc.publicnode.com",
}

// NetworkName returns the network name for a known chain id.
func NetworkName(chainID int64) (string, bool) {
	switch chainID {
	case MainnetChainID:
		return MainnetNetwork, true
	case SepoliaChainID:
		return SepoliaNetwork, true
	default:
		return "", false
	}
}

// DefaultRPCEndpoints returns the public endpoint list for a known chain id.
func DefaultRPCEndpoints(chainID int64) []string {
	switch chainID {
	case MainnetChainID:
		return append([]string(nil), MainnetRPCEndpoints...)
	case SepoliaChainID:
		return append([]string(nil), SepoliaRPCEndpoints...)
	default:
		return nil
	}
}
