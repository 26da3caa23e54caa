package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/sendly/sendly-rosetta/client"
)

const (
	// DefaultEndpoint is the Pinata API root.
	DefaultEndpoint = "https://api.pinata.cloud"

	pinFilePath = "pinning/pinFileToIPFS"
	pinJSONPath = "pinning/pinJSONToIPFS"

	defaultRetryMax = 2
	maxErrorBody    = 4096
)

var (
	// ErrMissingCredentials is returned when the pinning keys are not set.
	ErrMissingCredentials = errors.New("pinata api key and secret are required")
	// ErrPinFailed wraps non-2xx answers of the pinning service.
	ErrPinFailed = errors.New("pinning failed")
)

// Pinner stores content on IPFS and returns its ipfs:// URI
type Pinner interface {
	PinFile(ctx context.Context, name string, content io.Reader) (string, error)
	PinJSON(ctx context.Context, name string, content interface{}) (string, error)
}

// Pinata is a Pinner backed by the Pinata pinning API
type Pinata struct {
	endpoint   string
	apiKey     string
	secretKey  string
	httpClient *retryablehttp.Client
}

var _ Pinner = &Pinata{}

// Option customizes a Pinata client
type Option func(*Pinata)

// WithEndpoint overrides the API root.
func WithEndpoint(endpoint string) Option {
	return func(p *Pinata) {
		p.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithHTTPClient overrides the retrying HTTP client.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(p *Pinata) {
		p.httpClient = c
	}
}

// NewPinata returns a Pinata client authenticated with an API key pair
func NewPinata(apiKey, secretKey string, logger zerolog.Logger, opts ...Option) (*Pinata, error) {
	if apiKey == "" || secretKey == "" {
		return nil, ErrMissingCredentials
	}

	p := &Pinata{
		endpoint:  DefaultEndpoint,
		apiKey:    apiKey,
		secretKey: secretKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = client.NewHTTPClient(defaultRetryMax, logger)
	}
	return p, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinJSONRequest struct {
	PinataMetadata pinataMetadata `json:"pinataMetadata"`
	PinataContent  interface{}    `json:"pinataContent"`
}

// PinFile uploads content as a file named name.
func (p *Pinata) PinFile(ctx context.Context, name string, content io.Reader) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	meta, err := json.Marshal(pinataMetadata{Name: name})
	if err != nil {
		return "", err
	}
	if err := form.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	return p.pin(ctx, pinFilePath, form.FormDataContentType(), body.Bytes())
}

// PinJSON uploads content as a JSON document labelled name.
func (p *Pinata) PinJSON(ctx context.Context, name string, content interface{}) (string, error) {
	body, err := json.Marshal(pinJSONRequest{
		PinataMetadata: pinataMetadata{Name: name},
		PinataContent:  content,
	})
	if err != nil {
		return "", err
	}

	return p.pin(ctx, pinJSONPath, "application/json", body)
}

func (p *Pinata) pin(ctx context.Context, path string, contentType string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/%s", p.endpoint, path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %s: %s", ErrPinFailed, resp.Status, strings.TrimSpace(string(msg)))
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("decoding pin response: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("%w: empty ipfs hash", ErrPinFailed)
	}

	return "ipfs://" + pinned.IpfsHash, nil
}
