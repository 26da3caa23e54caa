package giftcard

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sendly/sendly-rosetta/client"
)

var (
	transferEvent        = client.GiftCardABI.Events["Transfer"]
	giftCardCreatedEvent = client.GiftCardABI.Events["GiftCardCreated"]
)

// decodeTransfer decodes an ERC-721 Transfer log. ERC-20 transfers share the
// event signature but carry the value in data, so they have one topic less.
func decodeTransfer(log types.Log) (*TransferEvent, error) {
	if len(log.Topics) != 4 || log.Topics[0] != transferEvent.ID {
		return nil, fmt.Errorf("%w: not an ERC-721 transfer log", ErrUnexpectedResponse)
	}

	var out struct {
		From    common.Address
		To      common.Address
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&out, indexed(transferEvent.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	return &TransferEvent{
		From:        out.From,
		To:          out.To,
		TokenID:     out.TokenId,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}

func indexed(args abi.Arguments) abi.Arguments {
	var out abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}

// transferTopics builds the topic filter for Transfer logs. Nil rules match
// anything.
func transferTopics(from *common.Address, tokenID *big.Int) ([][]common.Hash, error) {
	var fromRule, tokenRule []interface{}
	if from != nil {
		fromRule = []interface{}{*from}
	}
	if tokenID != nil {
		tokenRule = []interface{}{new(big.Int).Set(tokenID)}
	}

	topics, err := abi.MakeTopics(fromRule, nil, tokenRule)
	if err != nil {
		return nil, err
	}
	return append([][]common.Hash{{transferEvent.ID}}, topics...), nil
}

// lookbackWindow returns the block range scanned for transfer logs.
func (b *Backend) lookbackWindow(ctx context.Context) (uint64, uint64, error) {
	head, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("block number: %w", err)
	}

	var from uint64
	if head > b.config.LookbackBlocks {
		from = head - b.config.LookbackBlocks
	}
	return from, head, nil
}

// transfers returns the gift card Transfer events matching the filter inside
// the lookback window, in log order. Undecodable logs are skipped.
func (b *Backend) transfers(ctx context.Context, from *common.Address, tokenID *big.Int) ([]*TransferEvent, error) {
	fromBlock, toBlock, err := b.lookbackWindow(ctx)
	if err != nil {
		return nil, err
	}

	topics, err := transferTopics(from, tokenID)
	if err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{b.config.GiftCardContract},
		Topics:    topics,
	}

	logs, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer logs: %w", err)
	}

	events := make([]*TransferEvent, 0, len(logs))
	for _, log := range logs {
		event, err := decodeTransfer(log)
		if err != nil {
			b.logger.Warn().Err(err).Stringer("tx", log.TxHash).Uint("index", log.Index).Msg("skipping log")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// createdTokenID finds the id of the card minted by a createGiftCard receipt:
// the GiftCardCreated event first, then the mint Transfer.
func (b *Backend) createdTokenID(receipt *types.Receipt) (*big.Int, bool) {
	for _, log := range receipt.Logs {
		if log.Address != b.config.GiftCardContract || len(log.Topics) < 2 {
			continue
		}
		if log.Topics[0] == giftCardCreatedEvent.ID {
			return new(big.Int).SetBytes(log.Topics[1].Bytes()), true
		}
	}

	for _, log := range receipt.Logs {
		if log.Address != b.config.GiftCardContract {
			continue
		}
		event, err := decodeTransfer(*log)
		if err != nil {
			continue
		}
		if event.From == (common.Address{}) {
			return event.TokenID, true
		}
	}
	return nil, false
}
