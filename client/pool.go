package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrNoEndpoints = errors.New("rpc endpoint list is empty")

// Pool is an ordered, non-empty list of RPC endpoints with a cursor marking
// the one currently in use.
type Pool struct {
	endpoints []string
	dial      DialFunc
	logger    zerolog.Logger

	mu      sync.Mutex
	cursor  int
	clients []Client
	// refs counts the callers holding each client. Replaced clients are
	// closed once the last holder releases them.
	refs    map[Client]int
	retired map[Client]bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger used to report rotations.
func WithPoolLogger(logger zerolog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool returns a pool over endpoints, dialling each one lazily with dial.
func NewPool(endpoints []string, dial DialFunc, opts ...PoolOption) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	if dial == nil {
		dial = DialEth
	}

	p := &Pool{
		endpoints: append([]string(nil), endpoints...),
		dial:      dial,
		logger:    zerolog.Nop(),
		clients:   make([]Client, len(endpoints)),
		refs:      map[Client]int{},
		retired:   map[Client]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Len returns the number of endpoints in the pool.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// Endpoint returns the endpoint URL at index i.
func (p *Pool) Endpoint(i int) string {
	return p.endpoints[i]
}

// Cursor returns the index of the endpoint currently in use.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Current returns the cursor and the client bound to it. A non-nil client
// must be handed back with Release.
func (p *Pool) Current(ctx context.Context) (int, Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.clientLocked(ctx, p.cursor)
	return p.cursor, c, err
}

// Rotate moves the cursor past the endpoint at index from and rebuilds the
// connection for the newly selected endpoint. When the cursor has already
// moved away from from, it is left where it is, so concurrent callers that
// failed on the same endpoint only advance it once. A non-nil client must
// be handed back with Release.
func (p *Pool) Rotate(ctx context.Context, from int) (int, Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cursor == from {
		p.cursor = (p.cursor + 1) % len(p.endpoints)
		p.retireLocked(p.cursor)
		p.logger.Info().
			Int("index", p.cursor).
			Int("endpoints", len(p.endpoints)).
			Str("endpoint", p.endpoints[p.cursor]).
			Msg("switching rpc endpoint")
	}

	c, err := p.clientLocked(ctx, p.cursor)
	return p.cursor, c, err
}

// Restore puts the cursor back on index.
func (p *Pool) Restore(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cursor == index {
		return
	}
	p.cursor = index
	p.retireLocked(index)
	p.logger.Info().
		Int("index", index).
		Str("endpoint", p.endpoints[index]).
		Msg("reverting to original rpc endpoint")
}

// Release hands back a client obtained from Current or Rotate.
func (p *Pool) Release(c Client) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.refs[c]--; p.refs[c] > 0 {
		return
	}
	delete(p.refs, c)
	if p.retired[c] {
		delete(p.retired, c)
		c.Close()
	}
}

// Close closes every client the pool still knows about, held or not.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.clients {
		if c != nil {
			c.Close()
			p.clients[i] = nil
		}
	}
	for c := range p.retired {
		c.Close()
	}
	p.refs = map[Client]int{}
	p.retired = map[Client]bool{}
}

func (p *Pool) clientLocked(ctx context.Context, i int) (Client, error) {
	c := p.clients[i]
	if c == nil {
		var err error
		if c, err = p.dial(ctx, p.endpoints[i]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDial, p.endpoints[i], err)
		}
		p.clients[i] = c
	}
	p.refs[c]++
	return c, nil
}

// retireLocked drops the client of endpoint i so that it is dialled again on
// next use. The old client is closed now if nobody holds it, or on its last
// Release.
func (p *Pool) retireLocked(i int) {
	c := p.clients[i]
	if c == nil {
		return
	}
	p.clients[i] = nil
	if p.refs[c] == 0 {
		c.Close()
		return
	}
	p.retired[c] = true
}
