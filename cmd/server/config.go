package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

const paymasterAPIKeyEnv = "PAYMASTER_API_KEY"

var (
	errMissingRPC              = errors.New("rpc endpoints are not provided")
	errInvalidRPC              = errors.New("invalid rpc endpoint")
	errInvalidMode             = constants.ErrInvalidMode
	errMissingNetworkName      = errors.New("network name is not provided")
	errMissingGiftCardContract = errors.New("gift card contract address is not provided")
	errInvalidContractAddress  = errors.New("invalid contract address provided")
	errMissingStablecoins      = errors.New("usdc and usdt contract addresses are required for this chain")
	errInvalidStablecoin       = errors.New("stablecoin contract does not report the expected currency")
	errInvalidDuration         = errors.New("invalid duration")
	errInvalidPaymaster        = errors.New("invalid paymaster url")
	errMissingPaymasterKey     = errors.New("paymaster api key is not provided")
)

type config struct {
	Mode         string   `json:"mode"`
	ListenAddr   string   `json:"listen_addr"`
	NetworkName  string   `json:"network_name"`
	ChainID      int64    `json:"chain_id"`
	RPCEndpoints []string `json:"rpc_endpoints"`
	LogRequests  bool     `json:"log_requests"`
	LogLevel     string   `json:"log_level"`

	GiftCardContract    string `json:"giftcard_contract"`
	USDCContract        string `json:"usdc_contract"`
	USDTContract        string `json:"usdt_contract"`
	ValidateStablecoins bool   `json:"validate_stablecoins"`

	CacheTTL       string `json:"cache_ttl"`
	CacheSize      int    `json:"cache_size"`
	MaxRetries     *int   `json:"max_retries"`
	AttemptTimeout string `json:"attempt_timeout"`
	LookbackBlocks uint64 `json:"lookback_blocks"`
	BatchSize      int    `json:"batch_size"`

	PaymasterURL    string `json:"paymaster_url"`
	PaymasterAPIKey string `json:"paymaster_api_key"`

	mode           constants.NodeMode
	logLevel       zerolog.Level
	cacheTTL       time.Duration
	attemptTimeout time.Duration
}

func readConfig(path string) (*config, error) {
	cfg := &config{}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(cfg)
	return cfg, err
}

func (c *config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = constants.Online.String()
	}

	if c.ChainID == 0 {
		c.ChainID = constants.MainnetChainID
	}

	if c.NetworkName == "" {
		c.NetworkName, _ = constants.NetworkName(c.ChainID)
	}

	if len(c.RPCEndpoints) == 0 {
		c.RPCEndpoints = constants.DefaultRPCEndpoints(c.ChainID)
	}

	if c.ChainID == constants.MainnetChainID {
		if c.USDCContract == "" {
			c.USDCContract = constants.MainnetUSDCAddress
		}
		if c.USDTContract == "" {
			c.USDTContract = constants.MainnetUSDTAddress
		}
	}

	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:8080"
	}

	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelInfoValue
	}

	if c.MaxRetries == nil {
		maxRetries := constants.MaxRetries
		c.MaxRetries = &maxRetries
	}

	if c.PaymasterAPIKey == "" {
		c.PaymasterAPIKey = os.Getenv(paymasterAPIKeyEnv)
	}
}

func (c *config) Validate() error {
	c.ApplyDefaults()

	mode, err := constants.GetNodeMode(c.Mode)
	if err != nil {
		return errInvalidMode
	}
	c.mode = mode

	if c.logLevel, err = zerolog.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.NetworkName == "" {
		return errMissingNetworkName
	}

	if len(c.RPCEndpoints) == 0 {
		return errMissingRPC
	}
	for _, endpoint := range c.RPCEndpoints {
		if err := validateURL(endpoint); err != nil {
			return fmt.Errorf("%w %q: %v", errInvalidRPC, endpoint, err)
		}
	}

	if c.mode == constants.Online && c.GiftCardContract == "" {
		return errMissingGiftCardContract
	}
	if c.USDCContract == "" || c.USDTContract == "" {
		return errMissingStablecoins
	}
	for _, addr := range []string{c.GiftCardContract, c.USDCContract, c.USDTContract} {
		if addr != "" && !ethcommon.IsHexAddress(addr) {
			return fmt.Errorf("%w: %q", errInvalidContractAddress, addr)
		}
	}

	if c.cacheTTL, err = parseDuration(c.CacheTTL, constants.CacheTTL); err != nil {
		return err
	}
	if c.attemptTimeout, err = parseDuration(c.AttemptTimeout, constants.AttemptTimeout); err != nil {
		return err
	}

	if c.PaymasterURL != "" {
		if err := validateURL(c.PaymasterURL); err != nil {
			return fmt.Errorf("%w: %v", errInvalidPaymaster, err)
		}
		if c.PaymasterAPIKey == "" {
			return errMissingPaymasterKey
		}
	}
	return nil
}

// CheckStablecoins checks that the configured stablecoin contracts report
// the expected symbol and precision.
func (c *config) CheckStablecoins(ctx context.Context, cc *client.ContractClient) error {
	expected := map[mapper.Token]string{
		mapper.USDC: c.USDCContract,
		mapper.USDT: c.USDTContract,
	}
	for _, token := range mapper.Tokens {
		currency, err := cc.ContractCurrency(ctx, ethcommon.HexToAddress(expected[token]))
		if err != nil {
			return err
		}
		if currency.Decimals != mapper.StablecoinDecimals || currency.Symbol == client.UnknownERC20Symbol {
			return fmt.Errorf("%w: %s at %s reports %s with %d decimals",
				errInvalidStablecoin, token, expected[token], currency.Symbol, currency.Decimals)
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidDuration, raw)
	}
	return d, nil
}
