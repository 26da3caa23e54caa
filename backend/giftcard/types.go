package giftcard

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sendly/sendly-rosetta/mapper"
)

// Confidence tells how a derived value was obtained.
type Confidence string

const (
	// ConfidenceResolved values were read from an on-chain record.
	ConfidenceResolved Confidence = "resolved"
	// ConfidenceApproximated values are a best-effort substitute.
	ConfidenceApproximated Confidence = "approximated"
	// ConfidenceUnknown values could not be determined at all.
	ConfidenceUnknown Confidence = "unknown"
)

// Direction is the side of a card relative to the account it was loaded for.
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)

// Card is a gift card as presented to callers.
type Card struct {
	TokenID          string       `json:"token_id"`
	Recipient        string       `json:"recipient"`
	Sender           string       `json:"sender"`
	SenderConfidence Confidence   `json:"sender_confidence"`
	Amount           string       `json:"amount"`
	Token            mapper.Token `json:"token"`
	Message          string       `json:"message"`
	Redeemed         bool         `json:"redeemed"`
	Direction        Direction    `json:"type"`
}

// CardInfo is the raw record returned by getGiftCardInfo.
type CardInfo struct {
	Amount   *big.Int       `json:"amount"`
	Token    common.Address `json:"token"`
	Redeemed bool           `json:"redeemed"`
	Message  string         `json:"message"`
}

// Creator is the account a card was minted to, or its best substitute.
type Creator struct {
	Address    common.Address `json:"address"`
	Confidence Confidence     `json:"confidence"`
}

// TransferEvent is a decoded ERC-721 Transfer log.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	TokenID     *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// Session is the signing context used by write operations.
type Session struct {
	From   common.Address
	Signer bind.SignerFn
}

// CreateCardRequest describes a card to mint.
type CreateCardRequest struct {
	Recipient   string
	Amount      string
	Token       mapper.Token
	MetadataURI string
	Message     string
}

// CreateCardResult is the outcome of a confirmed card creation.
type CreateCardResult struct {
	TokenID           string       `json:"token_id"`
	TokenIDConfidence Confidence   `json:"token_id_confidence"`
	TxHash            common.Hash  `json:"tx_hash"`
	ApprovalTxHash    *common.Hash `json:"approval_tx_hash,omitempty"`
}
