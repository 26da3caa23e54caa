package service

import (
	"errors"

	"github.com/coinbase/rosetta-sdk-go/types"

	"github.com/sendly/sendly-rosetta/backend/giftcard"
	"github.com/sendly/sendly-rosetta/client"
)

var (
	// Errors lists all available error types
	Errors = []*types.Error{
		ErrNotImplemented,
		ErrNotSupported,
		ErrUnavailableOffline,
		ErrInternalError,
		ErrInvalidInput,
		ErrClientError,
		ErrCallInvalidMethod,
		ErrCallInvalidParams,
		ErrContractReverted,
	}

	// General errors
	ErrNotImplemented     = makeError(2, "Endpoint is not implemented", false)
	ErrNotSupported       = makeError(3, "Endpoint is not supported", false)
	ErrUnavailableOffline = makeError(4, "Endpoint is not available offline", false)
	ErrInternalError      = makeError(5, "Internal server error", true)
	ErrInvalidInput       = makeError(6, "Invalid input", false)
	ErrClientError        = makeError(7, "Client error", true)
	ErrCallInvalidMethod  = makeError(10, "Invalid call method", false)
	ErrCallInvalidParams  = makeError(11, "invalid call params", false)
	ErrContractReverted   = makeError(12, "Contract call reverted", false)
)

func makeError(code int32, message string, retriable bool) *types.Error {
	return &types.Error{
		Code:      code,
		Message:   message,
		Retriable: retriable,
		Details:   map[string]interface{}{},
	}
}

// WrapError returns a copy of err with message added to its details
func WrapError(err *types.Error, message interface{}) *types.Error {
	newErr := makeError(err.Code, err.Message, err.Retriable)

	if err.Description != nil {
		newErr.Description = err.Description
	}

	for k, v := range err.Details {
		newErr.Details[k] = v
	}

	switch t := message.(type) {
	case error:
		newErr.Details["error"] = t.Error()
	default:
		newErr.Details["error"] = t
	}

	return newErr
}

// backendError maps a backend failure onto a rosetta error.
func backendError(err error) *types.Error {
	switch {
	case errors.Is(err, giftcard.ErrInvalidTokenID),
		errors.Is(err, giftcard.ErrInvalidAddress),
		errors.Is(err, giftcard.ErrUnsupportedToken):
		return WrapError(ErrInvalidInput, err)
	case client.IsRevert(err):
		return WrapError(ErrContractReverted, err)
	case errors.Is(err, giftcard.ErrUnexpectedResponse):
		return WrapError(ErrInternalError, err)
	default:
		return WrapError(ErrClientError, err)
	}
}
