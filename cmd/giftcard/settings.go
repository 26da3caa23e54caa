package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

const (
	contractEnv     = "GIFTCARD_CONTRACT"
	pinataKeyEnv    = "PINATA_API_KEY"
	pinataSecretEnv = "PINATA_SECRET_API_KEY"
)

var errMissingContract = errors.New("gift card contract is required: pass -contract or set " + contractEnv)

// settings are the global flags shared by every command.
type settings struct {
	chainID    int64
	rpc        string
	contract   string
	usdc       string
	usdt       string
	keystore   string
	logLevel   string
	maxRetries int

	pinataKey    string
	pinataSecret string

	endpoints []string
}

func parseSettings(args []string, output io.Writer) (*settings, []string, error) {
	s := &settings{}
	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: %s [flags] <command> [args]\n\ncommands: %s\n\nflags:\n",
			cmdName, strings.Join(commandNames(), ", "))
		fs.PrintDefaults()
	}
	fs.Int64Var(&s.chainID, "chain-id", constants.MainnetChainID, "Chain id")
	fs.StringVar(&s.rpc, "rpc", "", "Comma separated RPC endpoints, in failover order")
	fs.StringVar(&s.contract, "contract", os.Getenv(contractEnv), "Gift card contract address")
	fs.StringVar(&s.usdc, "usdc", "", "USDC contract address")
	fs.StringVar(&s.usdt, "usdt", "", "USDT contract address")
	fs.StringVar(&s.keystore, "keystore", "", "Path to an encrypted keystore file")
	fs.StringVar(&s.logLevel, "log-level", "warn", "Log level")
	fs.IntVar(&s.maxRetries, "max-retries", constants.MaxRetries, "Retries per RPC endpoint")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	s.pinataKey = os.Getenv(pinataKeyEnv)
	s.pinataSecret = os.Getenv(pinataSecretEnv)

	if err := s.validate(); err != nil {
		return nil, nil, err
	}
	return s, fs.Args(), nil
}

func (s *settings) validate() error {
	if s.rpc != "" {
		for _, endpoint := range strings.Split(s.rpc, ",") {
			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				s.endpoints = append(s.endpoints, endpoint)
			}
		}
	} else {
		s.endpoints = constants.DefaultRPCEndpoints(s.chainID)
	}
	if len(s.endpoints) == 0 {
		return fmt.Errorf("no rpc endpoints known for chain %d: pass -rpc", s.chainID)
	}

	if s.chainID == constants.MainnetChainID {
		if s.usdc == "" {
			s.usdc = constants.MainnetUSDCAddress
		}
		if s.usdt == "" {
			s.usdt = constants.MainnetUSDTAddress
		}
	}

	if s.contract == "" {
		return errMissingContract
	}
	for _, addr := range []string{s.contract, s.usdc, s.usdt} {
		if _, err := mapper.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: %q", err, addr)
		}
	}
	return nil
}

func (s *settings) chainIDBig() *big.Int {
	return big.NewInt(s.chainID)
}

func (s *settings) address(hex string) ethcommon.Address {
	return ethcommon.HexToAddress(hex)
}
