package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/sendly/sendly-rosetta/client"
)

const (
	// RequestIDHeader carries the id assigned to a sponsored operation.
	RequestIDHeader = "X-Request-Id"

	defaultRetryMax = 2
	maxResponseSize = 1 << 20
)

// ErrNoPaymasterURL is returned when the relay is built without an upstream.
var ErrNoPaymasterURL = errors.New("paymaster url is not configured")

// Paymaster forwards sponsorship requests to a paymaster JSON API
type Paymaster struct {
	url        string
	apiKey     string
	httpClient *retryablehttp.Client
	logger     zerolog.Logger
}

// PaymasterOption customizes a Paymaster
type PaymasterOption func(*Paymaster)

// WithHTTPClient overrides the retrying HTTP client.
func WithHTTPClient(c *retryablehttp.Client) PaymasterOption {
	return func(p *Paymaster) {
		p.httpClient = c
	}
}

// WithLogger sets the relay logger.
func WithLogger(logger zerolog.Logger) PaymasterOption {
	return func(p *Paymaster) {
		p.logger = logger
	}
}

// NewPaymaster returns a client for the paymaster at url
func NewPaymaster(url string, apiKey string, opts ...PaymasterOption) (*Paymaster, error) {
	if url == "" {
		return nil, ErrNoPaymasterURL
	}

	p := &Paymaster{
		url:    url,
		apiKey: apiKey,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = client.NewHTTPClient(defaultRetryMax, p.logger)
	}
	return p, nil
}

// Response is an upstream answer, passed through opaquely.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the paymaster accepted the request.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sponsor posts body to the paymaster. A non-nil error means no answer was
// received; upstream rejections are returned as a Response.
func (p *Paymaster) Sponsor(ctx context.Context, requestID string, body []byte) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paymaster request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("paymaster response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bytes.TrimSpace(data),
	}, nil
}
