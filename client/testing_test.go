package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	mocks "github.com/sendly/sendly-rosetta/mocks/client"
)

// rpcError is a JSON-RPC error as returned by go-ethereum's rpc client.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

var (
	errTimeout     = errors.New("i/o timeout")
	errRateLimited = rpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}
	errForbidden   = rpc.HTTPError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}
	errReverted    = &rpcError{code: 3, msg: "execution reverted: not owner"}
)

// mockDialer hands out one mock client per endpoint and counts dials.
type mockDialer struct {
	mu      sync.Mutex
	clients map[string]*mocks.Client
	failing map[string]error
	dials   map[string]int
}

func newMockDialer(clients map[string]*mocks.Client) *mockDialer {
	return &mockDialer{
		clients: clients,
		failing: map[string]error{},
		dials:   map[string]int{},
	}
}

func (d *mockDialer) dial(_ context.Context, endpoint string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials[endpoint]++
	if err, ok := d.failing[endpoint]; ok {
		return nil, err
	}
	c, ok := d.clients[endpoint]
	if !ok {
		return nil, fmt.Errorf("no client for %s", endpoint)
	}
	return c, nil
}

// sleepRecorder records the waits requested by the executor without sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func blockNumber(ctx context.Context, c Client) (uint64, error) {
	return c.BlockNumber(ctx)
}
