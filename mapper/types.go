package mapper

import (
	"github.com/coinbase/rosetta-sdk-go/types"
)

const ContractAddressMetadata = "contractAddress"

const (
	OpGiftCardCreate = "GIFT_CARD_CREATE"
	OpGiftCardRedeem = "GIFT_CARD_REDEEM"
	OpTokenApprove   = "TOKEN_APPROVE"

	TxStatusSuccess = "SUCCESS"
	TxStatusFailure = "FAILURE"
)

var (
	OperationStatuses = []*types.OperationStatus{
		{
			Status:     TxStatusSuccess,
			Successful: true,
		},
		{
			Status:     TxStatusFailure,
			Successful: false,
		},
	}

	OperationTypes = []string{
		OpGiftCardCreate,
		OpGiftCardRedeem,
		OpTokenApprove,
	}
)
