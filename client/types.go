package client

const (
	UnknownERC20Symbol   = "ERC20_UNKNOWN"
	UnknownERC20Decimals = 0
)

// ContractCurrency is the symbol and precision reported by an ERC-20 contract.
type ContractCurrency struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}
