package giftcard

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/sendly/sendly-rosetta/cache"
	"github.com/sendly/sendly-rosetta/client"
)

// Backend reads and writes gift cards through a resilient executor. Reads are
// served from a TTL cache where possible; writes need a Session.
type Backend struct {
	config  *Config
	exec    *client.Executor
	logger  zerolog.Logger
	metrics *client.Metrics

	cache    *cache.Cache[interface{}]
	inflight singleflight.Group

	// Loads only store their result when the version of their key is
	// unchanged since they started. clears moves on every full clear,
	// versions on every invalidation of a single key.
	versionMu sync.Mutex
	clears    uint64
	versions  map[string]uint64

	mu      sync.RWMutex
	session *Session
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithCache replaces the read cache.
func WithCache(c *cache.Cache[interface{}]) Option {
	return func(b *Backend) {
		b.cache = c
	}
}

// NewBackend returns a gift card backend for config reading through exec
func NewBackend(config *Config, exec *client.Executor, opts ...Option) *Backend {
	config.ApplyDefaults()

	b := &Backend{
		config:   config,
		exec:     exec,
		logger:   zerolog.Nop(),
		metrics:  exec.Metrics(),
		versions: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cache == nil {
		b.cache = cache.New[interface{}](config.CacheTTL, config.CacheSize)
	}
	return b
}

// Config returns the backend configuration.
func (b *Backend) Config() *Config {
	return b.config
}

// ClearCache drops every cached read result.
func (b *Backend) ClearCache() {
	b.versionMu.Lock()
	b.clears++
	b.versions = map[string]uint64{}
	b.cache.Clear()
	b.versionMu.Unlock()

	b.logger.Debug().Msg("read cache cleared")
}

// invalidate drops keys and keeps loads already running for them from
// storing their result.
func (b *Backend) invalidate(keys ...string) {
	b.versionMu.Lock()
	defer b.versionMu.Unlock()

	for _, key := range keys {
		b.versions[key]++
		b.cache.Remove(key)
	}
}

func (b *Backend) version(key string) string {
	b.versionMu.Lock()
	defer b.versionMu.Unlock()
	return b.versionLocked(key)
}

func (b *Backend) versionLocked(key string) string {
	return strconv.FormatUint(b.clears, 10) + "." + strconv.FormatUint(b.versions[key], 10)
}

// store caches value unless key was invalidated since version was taken.
func (b *Backend) store(key, version string, value interface{}) {
	b.versionMu.Lock()
	defer b.versionMu.Unlock()

	if b.versionLocked(key) == version {
		b.cache.Set(key, value)
	}
}

// cached serves key from the cache, or runs load once for all concurrent
// callers asking for the same key and stores its result. The shared load is
// detached from the caller that started it, so a caller giving up only ends
// its own wait.
func cached[T any](ctx context.Context, b *Backend, kind, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if v, ok := b.cache.Get(key); ok {
		if res, ok := v.(T); ok {
			b.metrics.CacheHit(kind)
			return res, nil
		}
	}
	b.metrics.CacheMiss(kind)

	version := b.version(key)
	ch := b.inflight.DoChan(key+"@"+version, func() (interface{}, error) {
		// a load for the same key may have finished since the lookup above
		if v, ok := b.cache.Get(key); ok {
			if res, ok := v.(T); ok {
				return res, nil
			}
		}

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.LoadTimeout)
		defer cancel()
		res, err := load(lctx)
		if err != nil {
			return nil, err
		}
		b.store(key, version, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

// call performs a read-only contract call and decodes its outputs.
func (b *Backend) call(
	ctx context.Context,
	contract common.Address,
	contractABI abi.ABI,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	raw, err := client.Execute(ctx, b.exec, func(ctx context.Context, c client.Client) ([]byte, error) {
		return c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, method, err)
	}
	if len(out) != len(contractABI.Methods[method].Outputs) {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedResponse, method, len(out))
	}
	return out, nil
}
