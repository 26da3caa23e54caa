package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/pinning"
)

const cmdName = "giftcard"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s, rest, err := parseSettings(args, stderr)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return usage(stderr)
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		return usage(stderr)
	}

	level, err := zerolog.ParseLevel(s.logLevel)
	if err != nil {
		return err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	a, err := newApp(s, logger, stdout)
	if err != nil {
		return err
	}
	defer a.pool.Close()
	if err := cmd.run(ctx, a, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: %s %s\n", cmdName, cmd.usage)
		}
		return err
	}
	return nil
}

func newApp(s *settings, logger zerolog.Logger, out io.Writer) (*app, error) {
	pool, err := client.NewPool(s.endpoints, client.DialEth, client.WithPoolLogger(logger))
	if err != nil {
		return nil, err
	}
	exec := client.NewExecutor(pool,
		client.WithMaxRetries(s.maxRetries),
		client.WithLogger(logger),
	)
	backend := giftcard.NewBackend(&giftcard.Config{
		ChainID:          s.chainIDBig(),
		GiftCardContract: s.address(s.contract),
		USDCContract:     s.address(s.usdc),
		USDTContract:     s.address(s.usdt),
	}, exec, giftcard.WithLogger(logger))

	a := &app{
		settings:   s,
		pool:       pool,
		backend:    backend,
		passphrase: terminalPassphrase,
		out:        out,
	}
	if s.pinataKey != "" && s.pinataSecret != "" {
		if a.pinner, err = pinning.NewPinata(s.pinataKey, s.pinataSecret, logger); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func usage(w io.Writer) error {
	fmt.Fprintf(w, "usage: %s [flags] <command> [args]\n\n", cmdName)
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %s %s\n", cmdName, commands[name].usage)
	}
	return errUsage
}
