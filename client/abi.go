package client

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// GiftCardABIJSON describes the gift card contract: an enumerable ERC-721
// where every token holds a stablecoin amount until redeemed.
const GiftCardABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getGiftCardInfo","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[
		{"name":"amount","type":"uint256"},
		{"name":"token","type":"address"},
		{"name":"redeemed","type":"bool"},
		{"name":"message","type":"string"}]},
	{"type":"function","name":"createGiftCard","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"recipient","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"token","type":"address"},
		{"name":"metadataURI","type":"string"},
		{"name":"message","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"redeemGiftCard","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"GiftCardCreated","anonymous":false,
	 "inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"sender","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"message","type":"string","indexed":false}]},
	{"type":"event","name":"GiftCardRedeemed","anonymous":false,
	 "inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"redeemer","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]}
]`

// ERC20ABIJSON is the fungible token subset used for the stablecoins.
const ERC20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"symbol","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint8"}]}
]`

var (
	GiftCardABI = mustParseABI(GiftCardABIJSON)
	ERC20ABI    = mustParseABI(ERC20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
