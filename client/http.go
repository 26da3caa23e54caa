package client

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	httpRetryWaitMin = 200 * time.Millisecond
	httpRetryWaitMax = 2 * time.Second
	httpTimeout      = 30 * time.Second
)

// NewHTTPClient returns a retrying HTTP client for the off-chain services
// (paymaster, pinning). The final response of an exhausted retry sequence is
// handed back to the caller instead of being turned into an error, so upstream
// status codes can be relayed.
func NewHTTPClient(retryMax int, logger zerolog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = httpRetryWaitMin
	c.RetryWaitMax = httpRetryWaitMax
	c.HTTPClient.Timeout = httpTimeout
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = leveledLogger{logger}
	return c
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
