package giftcard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sendly/sendly-rosetta/client"
	"github.com/sendly/sendly-rosetta/constants"
	"github.com/sendly/sendly-rosetta/mapper"
)

// Connect sets the signing context used by write operations. Switching to a
// different account drops all cached reads.
func (b *Backend) Connect(session *Session) error {
	if session == nil || session.Signer == nil {
		return errors.New("session requires a signer")
	}

	b.mu.Lock()
	previous := b.session
	b.session = session
	b.mu.Unlock()

	if previous != nil && previous.From != session.From {
		b.ClearCache()
	}
	b.logger.Info().Stringer("account", session.From).Msg("wallet connected")
	return nil
}

// Disconnect removes the signing context.
func (b *Backend) Disconnect() {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
}

// Account returns the connected account.
func (b *Backend) Account() (common.Address, bool) {
	session, err := b.currentSession()
	if err != nil {
		return common.Address{}, false
	}
	return session.From, true
}

func (b *Backend) currentSession() (*Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.session == nil {
		return nil, ErrNotConnected
	}
	return b.session, nil
}

// EnsureApproval makes sure the gift card contract may spend amount of the
// token on behalf of the connected account. It returns the approval
// transaction hash, or nil when the existing allowance already covers amount.
func (b *Backend) EnsureApproval(ctx context.Context, tokenAddr common.Address, amount *big.Int) (*common.Hash, error) {
	session, err := b.currentSession()
	if err != nil {
		return nil, err
	}

	out, err := b.call(ctx, tokenAddr, client.ERC20ABI, "allowance", session.From, b.config.GiftCardContract)
	if err != nil {
		return nil, err
	}
	allowance, err := uint256Output(out[0], "allowance")
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil, nil
	}

	data, err := client.ERC20ABI.Pack("approve", b.config.GiftCardContract, amount)
	if err != nil {
		return nil, err
	}
	hash, _, err := b.transact(ctx, session, tokenAddr, data)
	if err != nil {
		return nil, fmt.Errorf("approve: %w", err)
	}
	return &hash, nil
}

// CreateCard mints a gift card holding req.Amount of req.Token for
// req.Recipient. The sender balance is checked before anything is submitted.
func (b *Backend) CreateCard(ctx context.Context, req CreateCardRequest) (*CreateCardResult, error) {
	session, err := b.currentSession()
	if err != nil {
		return nil, err
	}

	recipient, err := mapper.ParseAddress(req.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := mapper.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	tokenAddr, err := b.config.TokenAddress(req.Token)
	if err != nil {
		return nil, err
	}

	balance, err := b.erc20Balance(ctx, tokenAddr, session.From)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, &InsufficientBalanceError{Token: req.Token, Need: amount, Have: balance}
	}

	approval, err := b.EnsureApproval(ctx, tokenAddr, amount)
	if err != nil {
		return nil, err
	}

	data, err := client.GiftCardABI.Pack("createGiftCard", recipient, amount, tokenAddr, req.MetadataURI, req.Message)
	if err != nil {
		return nil, err
	}
	hash, receipt, err := b.transact(ctx, session, b.config.GiftCardContract, data)
	if err != nil {
		return nil, fmt.Errorf("createGiftCard: %w", err)
	}

	b.invalidate(
		sentCardsKey(session.From),
		ownedCardsKey(recipient),
		tokenBalanceKey(req.Token, session.From),
	)

	result := &CreateCardResult{
		TxHash:         hash,
		ApprovalTxHash: approval,
	}
	if tokenID, ok := b.createdTokenID(receipt); ok {
		result.TokenID = tokenID.String()
		result.TokenIDConfidence = ConfidenceResolved
	} else {
		b.logger.Warn().Stringer("tx", hash).Msg("no creation event in receipt, reporting placeholder token id")
		result.TokenID = constants.PlaceholderTokenID
		result.TokenIDConfidence = ConfidenceApproximated
	}
	return result, nil
}

// RedeemCard redeems a card owned by the connected account and returns the
// transaction hash.
func (b *Backend) RedeemCard(ctx context.Context, tokenID *big.Int) (common.Hash, error) {
	session, err := b.currentSession()
	if err != nil {
		return common.Hash{}, err
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return common.Hash{}, ErrInvalidTokenID
	}

	// Fresh reads, a cached record may predate a redemption.
	info, err := b.loadCardInfo(ctx, tokenID)
	if err != nil {
		return common.Hash{}, err
	}
	if info.Redeemed {
		return common.Hash{}, ErrAlreadyRedeemed
	}
	owner, err := b.loadCardOwner(ctx, tokenID)
	if err != nil {
		return common.Hash{}, err
	}
	if owner != session.From {
		return common.Hash{}, ErrNotOwner
	}

	data, err := client.GiftCardABI.Pack("redeemGiftCard", tokenID)
	if err != nil {
		return common.Hash{}, err
	}
	hash, _, err := b.transact(ctx, session, b.config.GiftCardContract, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("redeemGiftCard: %w", err)
	}

	b.invalidate(
		cardInfoKey(tokenID),
		cardOwnerKey(tokenID),
		ownedCardsKey(session.From),
		tokenBalanceKey(mapper.TokenForAddress(info.Token, b.config.USDCContract), session.From),
	)
	return hash, nil
}

// transact signs a call to contract once and submits it through the
// executor, then waits for its receipt. Resubmitting the same signed
// transaction on another endpoint cannot execute it twice.
func (b *Backend) transact(
	ctx context.Context,
	session *Session,
	contract common.Address,
	data []byte,
) (common.Hash, *types.Receipt, error) {
	nonce, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, session.From)
	})
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: session.From, To: &contract, Data: data}
	gas, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) (uint64, error) {
		return c.EstimateGas(ctx, msg)
	})
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := session.Signer(session.From, tx)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("sign: %w", err)
	}

	hash := signed.Hash()
	sends := 0
	err = b.exec.Do(ctx, func(ctx context.Context, c client.Client) error {
		sends++
		err := c.SendTransaction(ctx, signed)
		switch {
		case err == nil, isAlreadyKnown(err):
			return nil
		case sends > 1 && isNonceTooLow(err):
			// an earlier attempt may have been accepted before its reply was lost
			b.logger.Warn().Err(err).Stringer("tx", hash).Msg("nonce used after resend, waiting for receipt")
			return nil
		case client.IsServerError(err):
			return client.Rejected(err)
		}
		return err
	})
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("send: %w", err)
	}

	b.logger.Info().Stringer("tx", hash).Stringer("to", contract).Uint64("nonce", nonce).Msg("transaction submitted")

	receipt, err := b.waitMined(ctx, hash)
	if err != nil {
		return hash, nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, hash.Hex())
	}
	return hash, receipt, nil
}

// waitMined polls for the receipt of hash until it shows up or the
// confirmation timeout elapses.
func (b *Backend) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, b.config.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(b.config.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.Execute(wctx, b.exec, func(ctx context.Context, c client.Client) (*types.Receipt, error) {
			receipt, err := c.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				return nil, nil
			}
			return receipt, err
		})
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && wctx.Err() == nil {
			b.logger.Debug().Err(err).Stringer("tx", hash).Msg("receipt lookup failed")
		}

		select {
		case <-wctx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}

func isNonceTooLow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") ||
		strings.Contains(msg, "known transaction")
}
