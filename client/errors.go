package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrEndpointsExhausted is matched by the error returned once every
	// endpoint has used up its attempt budget.
	ErrEndpointsExhausted = errors.New("all rpc endpoints failed")

	// ErrDial wraps failures to build a client for an endpoint.
	ErrDial = errors.New("rpc dial failed")
)

// JSON-RPC error codes with a fixed meaning across providers.
const (
	codeExecutionReverted = 3
	codeServerError       = -32000
	codeLimitExceeded     = -32005
	codeInvalidRequest    = -32600
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
)

// ErrorClass tells the executor how to react to a failed attempt.
type ErrorClass uint8

const (
	// ClassTransient failures are retried on the same endpoint after a short pause.
	ClassTransient ErrorClass = iota
	// ClassRateLimited failures are retried on the same endpoint with exponential backoff.
	ClassRateLimited
	// ClassFatal failures skip the remaining attempts and move to the next endpoint.
	ClassFatal
	// ClassRevert failures are answers from the contract and are returned as is.
	ClassRevert
	// ClassRejected failures are requests the node refused for good. They are
	// returned as is.
	ClassRejected
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassFatal:
		return "fatal"
	case ClassRevert:
		return "revert"
	case ClassRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by the transport onto an ErrorClass, using
// the HTTP status and JSON-RPC error code carried by go-ethereum's rpc errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}
	if errors.Is(err, ErrDial) {
		return ClassFatal
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return ClassRejected
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeExecutionReverted:
			return ClassRevert
		case codeLimitExceeded:
			return ClassRateLimited
		case codeInvalidRequest, codeMethodNotFound, codeInvalidParams:
			return ClassFatal
		case codeServerError:
			// Nodes that predate code 3 report reverts as generic server errors.
			if strings.HasPrefix(rpcErr.Error(), "execution reverted") {
				return ClassRevert
			}
		}
		return ClassTransient
	}

	// Timeouts, resets and anything unrecognized.
	return ClassTransient
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 400 && status < 500:
		return ClassFatal
	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable:
		return ClassFatal
	default:
		return ClassTransient
	}
}

// IsServerError reports whether err is a generic JSON-RPC server error
// (-32000) other than a revert. Nodes use it to refuse transactions, e.g.
// "nonce too low" or "insufficient funds for gas".
func IsServerError(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.ErrorCode() != codeServerError {
		return false
	}
	return Classify(err) != ClassRevert
}

// RejectedError wraps a failure that must not be retried on any endpoint.
type RejectedError struct {
	Err error
}

// Rejected marks err as final for the executor.
func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Err: err}
}

func (e *RejectedError) Error() string {
	return e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// IsRevert reports whether err is a contract execution revert.
func IsRevert(err error) bool {
	return err != nil && Classify(err) == ClassRevert
}

// ExhaustedError is returned when an operation failed on every endpoint.
// It unwraps to the last observed failure.
type ExhaustedError struct {
	Endpoints int
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s (%d attempts on %d endpoints): %v",
		ErrEndpointsExhausted, e.Attempts, e.Endpoints, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrEndpointsExhausted
}
