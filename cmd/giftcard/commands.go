package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/mapper"
	"github.com/sendly/sendly-rosetta/pinning"
)

var errUsage = errors.New("invalid arguments")

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"balance": {"balance [-account addr]", runBalance},
	"cards":   {"cards [-account addr] [-sent]", runCards},
	"info":    {"info <token id>", runInfo},
	"approve": {"approve -token USDC -amount 10", runApprove},
	"create":  {"create -to addr -amount 10 [-token USDC] [-message m] [-uri u | -image path -design d]", runCreate},
	"redeem":  {"redeem <token id>", runRedeem},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// app holds what commands need: the backend, a way to sign and the output.
type app struct {
	settings   *settings
	pool       *client.Pool
	backend    *giftcard.Backend
	pinner     pinning.Pinner
	passphrase passphraseFunc
	out        io.Writer
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// connect unlocks the signer and attaches it to the backend.
func (a *app) connect() (ethcommon.Address, error) {
	if account, ok := a.backend.Account(); ok {
		return account, nil
	}

	key, err := loadKey(a.settings.keystore, a.passphrase)
	if err != nil {
		return ethcommon.Address{}, err
	}
	session, err := newSession(key, a.settings.chainIDBig())
	if err != nil {
		return ethcommon.Address{}, err
	}
	if err := a.backend.Connect(session); err != nil {
		return ethcommon.Address{}, err
	}
	return session.From, nil
}

// account resolves an -account flag, defaulting to the signer's address.
func (a *app) account(flagValue string) (ethcommon.Address, error) {
	if flagValue != "" {
		return mapper.ParseAddress(flagValue)
	}
	return a.connect()
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func tokenIDArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	if _, err := mapper.ParseTokenID(args[0]); err != nil {
		return "", err
	}
	return args[0], nil
}

func runBalance(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("balance", a.out)
	accountFlag := fs.String("account", "", "Account address (defaults to the signer)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	account, err := a.account(*accountFlag)
	if err != nil {
		return err
	}

	count, err := a.backend.BalanceCount(ctx, account)
	if err != nil {
		return err
	}
	balances := map[string]string{}
	for _, token := range mapper.Tokens {
		balance, err := a.backend.TokenBalance(ctx, account, token)
		if err != nil {
			return err
		}
		balances[token.String()] = mapper.FormatAmount(balance)
	}

	return a.print(map[string]interface{}{
		"account":    account.Hex(),
		"gift_cards": count,
		"balances":   balances,
	})
}

func runCards(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("cards", a.out)
	accountFlag := fs.String("account", "", "Account address (defaults to the signer)")
	sent := fs.Bool("sent", false, "List cards sent by the account instead of received")
	if err := fs.Parse(args); err != nil {
		return err
	}

	account, err := a.account(*accountFlag)
	if err != nil {
		return err
	}

	load := a.backend.OwnedCards
	if *sent {
		load = a.backend.SentCards
	}
	cards, err := load(ctx, account)
	if err != nil {
		return err
	}
	return a.print(cards)
}

func runInfo(ctx context.Context, a *app, args []string) error {
	raw, err := tokenIDArg(args)
	if err != nil {
		return err
	}
	tokenID, _ := mapper.ParseTokenID(raw)

	info, err := a.backend.CardInfo(ctx, tokenID)
	if err != nil {
		return err
	}
	owner, err := a.backend.CardOwner(ctx, tokenID)
	if err != nil {
		return err
	}
	creator, err := a.backend.CardCreator(ctx, tokenID)
	if err != nil {
		return err
	}

	return a.print(map[string]interface{}{
		"token_id": raw,
		"amount":   mapper.FormatAmount(info.Amount),
		"token":    mapper.TokenForAddress(info.Token, a.backend.Config().USDCContract),
		"redeemed": info.Redeemed,
		"message":  info.Message,
		"owner":    owner.Hex(),
		"creator":  creator,
	})
}

func runApprove(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("approve", a.out)
	tokenFlag := fs.String("token", mapper.USDC.String(), "Stablecoin to approve")
	amountFlag := fs.String("amount", "", "Allowance in whole units, e.g. 12.5")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := mapper.ParseToken(*tokenFlag)
	if err != nil {
		return err
	}
	amount, err := mapper.ParseAmount(*amountFlag)
	if err != nil {
		return err
	}
	tokenAddr, err := a.backend.Config().TokenAddress(token)
	if err != nil {
		return err
	}
	if _, err := a.connect(); err != nil {
		return err
	}

	hash, err := a.backend.EnsureApproval(ctx, tokenAddr, amount)
	if err != nil {
		return err
	}
	result := map[string]interface{}{"approved": true}
	if hash != nil {
		result["tx_hash"] = hash.Hex()
	}
	return a.print(result)
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create", a.out)
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Card value in whole units, e.g. 25")
	tokenFlag := fs.String("token", mapper.USDC.String(), "Stablecoin backing the card")
	message := fs.String("message", "", "Message shown on the card")
	uri := fs.String("uri", "", "Metadata URI")
	image := fs.String("image", "", "Card artwork to pin to IPFS")
	design := fs.String("design", "custom", "Design name recorded in the metadata")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" || *amount == "" {
		return errUsage
	}

	token, err := mapper.ParseToken(*tokenFlag)
	if err != nil {
		return err
	}
	if _, err := a.connect(); err != nil {
		return err
	}

	metadataURI := *uri
	if *image != "" {
		if metadataURI, err = a.pinArtwork(ctx, *image, *amount, token, *message, *design); err != nil {
			return err
		}
	}

	result, err := a.backend.CreateCard(ctx, giftcard.CreateCardRequest{
		Recipient:   *to,
		Amount:      *amount,
		Token:       token,
		MetadataURI: metadataURI,
		Message:     *message,
	})
	if err != nil {
		return err
	}
	return a.print(result)
}

func (a *app) pinArtwork(
	ctx context.Context,
	path string,
	amount string,
	token mapper.Token,
	message string,
	design string,
) (string, error) {
	if a.pinner == nil {
		return "", fmt.Errorf("-image requires %s and %s", pinataKeyEnv, pinataSecretEnv)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return pinning.PinGiftCard(ctx, a.pinner, amount, token.String(), message, design, filepath.Base(path), f)
}

func runRedeem(ctx context.Context, a *app, args []string) error {
	raw, err := tokenIDArg(args)
	if err != nil {
		return err
	}
	tokenID, _ := mapper.ParseTokenID(raw)
	if _, err := a.connect(); err != nil {
		return err
	}

	hash, err := a.backend.RedeemCard(ctx, tokenID)
	if err != nil {
		return err
	}
	return a.print(map[string]string{
		"token_id": raw,
		"tx_hash":  hash.Hex(),
	})
}
