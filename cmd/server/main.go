package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinbase/rosetta-sdk-go/asserter"
	"github.com/coinbase/rosetta-sdk-go/server"
	"github.com/coinbase/rosetta-sdk-go/types"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
	"github.com/sendly/sendly-rosetta/relay"
	"github.com/sendly/sendly-rosetta/service"
)

const shutdownTimeout = 10 * time.Second

var (
	cmdName    = "sendly-rosetta"
	cmdVersion = service.MiddlewareVersion
)

var opts struct {
	configPath string
	version    bool
}

func init() {
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.version, "version", false, "Print version")
}

func main() {
	flag.Parse()

	if opts.version {
		log.Printf("%s %s\n", cmdName, cmdVersion)
		return
	}

	if opts.configPath == "" {
		log.Fatal("config file is not provided")
	}

	cfg, err := readConfig(opts.configPath)
	if err != nil {
		log.Fatal("config read error:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config validation error:", err)
	}

	logger := zerolog.New(os.Stderr).
		Level(cfg.logLevel).
		With().
		Timestamp().
		Str("service", cmdName).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := client.NewMetrics(registry)

	pool, err := client.NewPool(cfg.RPCEndpoints, client.DialEth, client.WithPoolLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("rpc pool init error")
	}
	exec := client.NewExecutor(pool,
		client.WithMaxRetries(*cfg.MaxRetries),
		client.WithAttemptTimeout(cfg.attemptTimeout),
		client.WithLogger(logger),
		client.WithMetrics(metrics),
	)

	if cfg.mode == constants.Online {
		if err := checkChainID(ctx, exec, cfg.ChainID); err != nil {
			logger.Fatal().Err(err).Msg("chain id check failed")
		}

		// Requires every configured stablecoin to answer symbol() and
		// decimals(), so it is opt-in.
		if cfg.ValidateStablecoins {
			if err := cfg.CheckStablecoins(ctx, client.NewContractClient(exec)); err != nil {
				logger.Fatal().Err(err).Msg("stablecoin validation error")
			}
		}
	}

	logger.Info().Str("mode", cfg.mode.String()).Msg("starting server")

	chainID := big.NewInt(cfg.ChainID)
	backend := giftcard.NewBackend(&giftcard.Config{
		ChainID:          chainID,
		GiftCardContract: ethcommon.HexToAddress(cfg.GiftCardContract),
		USDCContract:     ethcommon.HexToAddress(cfg.USDCContract),
		USDTContract:     ethcommon.HexToAddress(cfg.USDTContract),
		LookbackBlocks:   cfg.LookbackBlocks,
		BatchSize:        cfg.BatchSize,
		CacheTTL:         cfg.cacheTTL,
		CacheSize:        cfg.CacheSize,
	}, exec, giftcard.WithLogger(logger))

	network := &types.NetworkIdentifier{
		Blockchain: constants.BlockchainName,
		Network:    cfg.NetworkName,
	}

	asserter, err := asserter.NewServer(
		mapper.OperationTypes,               // supported operation types
		false,                               // historical balance lookup
		[]*types.NetworkIdentifier{network}, // supported networks
		service.CallMethods,                 // call methods
		false,                               // mempool coins
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("server asserter init error")
	}

	serviceConfig := &service.Config{
		Mode:         cfg.mode,
		ChainID:      chainID,
		NetworkID:    network,
		USDCContract: ethcommon.HexToAddress(cfg.USDCContract),
		USDTContract: ethcommon.HexToAddress(cfg.USDTContract),
	}

	routers := []server.Router{}
	if cfg.PaymasterURL != "" {
		paymaster, err := relay.NewPaymaster(cfg.PaymasterURL, cfg.PaymasterAPIKey, relay.WithLogger(logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("paymaster init error")
		}
		routers = append(routers, relay.NewSponsor(paymaster, logger))
		logger.Info().Str("route", relay.SponsorRoute).Msg("sponsor relay enabled")
	}

	handler := configureRouter(serviceConfig, asserter, backend, routers...)
	if cfg.LogRequests {
		handler = inspectMiddleware(logger, handler)
	}
	handler = server.LoggerMiddleware(handler)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", server.CorsMiddleware(handler))

	logger.Info().
		Str("chain", constants.BlockchainName).
		Int64("chain_id", cfg.ChainID).
		Str("network", cfg.NetworkName).
		Strs("rpc_endpoints", cfg.RPCEndpoints).
		Str("listen_addr", cfg.ListenAddr).
		Msg("starting rosetta server")

	if err := serve(ctx, &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	pool.Close()
	logger.Info().Msg("server stopped")
}

func configureRouter(
	serviceConfig *service.Config,
	asserter *asserter.Asserter,
	backend service.CardBackend,
	extra ...server.Router,
) http.Handler {
	networkService := service.NewNetworkService(serviceConfig, backend)
	accountService := service.NewAccountService(serviceConfig, backend)
	callService := service.NewCallService(serviceConfig, backend)

	routers := append([]server.Router{
		server.NewNetworkAPIController(networkService, asserter),
		server.NewAccountAPIController(accountService, asserter),
		server.NewCallAPIController(callService, asserter),
	}, extra...)
	return server.NewRouter(routers...)
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func checkChainID(ctx context.Context, exec *client.Executor, expected int64) error {
	chainID, err := client.Execute(ctx, exec, func(ctx context.Context, c client.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
	if err != nil {
		return err
	}
	if chainID.Int64() != expected {
		return fmt.Errorf("rpc endpoints serve chain %s, expected %d", chainID, expected)
	}
	return nil
}

// Inspect middleware used to inspect the body of requests
func inspectMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body = bytes.TrimSpace(body)
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Bytes("body", body).Msg("request")
		next.ServeHTTP(w, r)
	})
}
