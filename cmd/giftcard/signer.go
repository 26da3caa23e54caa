package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
)

const (
	privateKeyEnv = "GIFTCARD_PRIVATE_KEY"
	passphraseEnv = "GIFTCARD_PASSPHRASE"
)

var (
	errNoSigner        = errors.New("no signer: pass -keystore or set " + privateKeyEnv)
	errNoPassphrase    = errors.New("keystore passphrase required: set " + passphraseEnv + " or run in a terminal")
	errInvalidKeyInput = errors.New("invalid private key")
)

// passphraseFunc supplies the keystore passphrase on demand.
type passphraseFunc func() (string, error)

// loadKey decrypts the keystore file at path, or reads a hex key from the
// environment when no path is given.
func loadKey(path string, passphrase passphraseFunc) (*ecdsa.PrivateKey, error) {
	if path == "" {
		raw := strings.TrimPrefix(strings.TrimSpace(os.Getenv(privateKeyEnv)), "0x")
		if raw == "" {
			return nil, errNoSigner
		}
		key, err := crypto.HexToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidKeyInput, err)
		}
		return key, nil
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(keyJSON, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", path, err)
	}
	return key.PrivateKey, nil
}

// terminalPassphrase reads the passphrase from the environment, or prompts
// for it without echo when stdin is a terminal.
func terminalPassphrase() (string, error) {
	if pass, ok := os.LookupEnv(passphraseEnv); ok {
		return pass, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoPassphrase
	}
	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

func newSession(key *ecdsa.PrivateKey, chainID *big.Int) (*giftcard.Session, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	return &giftcard.Session{
		From:   opts.From,
		Signer: opts.Signer,
	}, nil
}
