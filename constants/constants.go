package constants

import "time"

const (
	// StablecoinDecimals is the fixed-point scale of USDC/USDT amounts.
	StablecoinDecimals = 6

	// CacheTTL is the freshness window of cached read results.
	CacheTTL = 300 * time.Second

	// CacheSize bounds the number of cached read results.
	CacheSize = 4096

	// LookbackBlocks is how far back transfer logs are scanned. Public
	// providers reject unbounded log ranges.
	LookbackBlocks = 5000

	// BatchSize is the number of per-card fetches in flight at once.
	BatchSize = 8

	MaxRetries          = 1
	AttemptTimeout      = 8 * time.Second
	RateLimitBackoff    = time.Second
	TransientRetryDelay = 500 * time.Millisecond

	// LoadTimeout bounds a cached read shared by concurrent callers. It runs
	// detached from any single caller.
	LoadTimeout = 60 * time.Second

	ReceiptPollInterval = 2 * time.Second
	ConfirmationTimeout = 2 * time.Minute

	// UnknownSender labels a card whose creator could not be resolved.
	UnknownSender = "Unknown"

	// PlaceholderTokenID is reported when a confirmed creation carries no
	// recognizable event.
	PlaceholderTokenID = "1"
)
