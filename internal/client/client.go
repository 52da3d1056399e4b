// Package client talks to the remote generation service.
//
// Every call is a single attempt bounded by the configured timeout; there
// is no retry loop. Responses are validated against the descriptor schema
// before anything downstream sees them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/simonhull/hatch/pkg/logger"
)

const (
	// DefaultEndpoint is the local generation service address.
	DefaultEndpoint = "http://localhost:8000"
	// DefaultTimeout bounds one generation call.
	DefaultTimeout = 2 * time.Minute
	// DefaultMaxResponseBytes caps the response body.
	DefaultMaxResponseBytes int64 = 32 << 20

	generatePath = "generate"
)

// Config holds the connection settings for the generation service.
type Config struct {
	Endpoint         string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// Client sends generation requests to the service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     logger.Logger
	calls      atomic.Int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The configured
// timeout is still applied through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client, filling unset config fields with defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calls returns how many generation requests this client has issued.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// Endpoint returns the configured base address.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Generate sends req and returns the validated descriptor.
//
// Transport failures and timeouts are returned as *scaffold.NetworkError;
// non-2xx responses and malformed bodies as *scaffold.ProtocolError.
func (c *Client) Generate(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	target, err := url.JoinPath(c.cfg.Endpoint, generatePath)
	if err != nil {
		return nil, &scaffold.NetworkError{Endpoint: c.cfg.Endpoint, Err: fmt.Errorf("invalid endpoint: %w", err)}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &scaffold.NetworkError{Endpoint: target, Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	log := c.logger.WithFields(logger.F("request_id", requestID), logger.F("session", req.SessionID))
	log.Debug("sending generation request", logger.F("endpoint", target), logger.F("prompt_bytes", len(req.Prompt)))

	c.calls.Add(1)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("generation request failed", logger.F("error", err))
		return nil, &scaffold.NetworkError{Endpoint: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, c.cfg.MaxResponseBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, &scaffold.ProtocolError{Field: "body", Reason: fmt.Sprintf("response exceeds %d bytes", c.cfg.MaxResponseBytes)}
		}
		return nil, &scaffold.NetworkError{Endpoint: target, Err: fmt.Errorf("reading response: %w", err)}
	}

	log.Debug("generation response received",
		logger.F("status", resp.StatusCode),
		logger.F("bytes", len(data)),
		logger.F("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &scaffold.ProtocolError{
			Field:  "status",
			Reason: serviceMessage(data),
			Status: resp.StatusCode,
		}
	}

	return DecodeDescriptor(data)
}

// Ping checks that the service is reachable and returns its status text.
func (c *Client) Ping(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := strings.TrimRight(c.cfg.Endpoint, "/") + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &scaffold.NetworkError{Endpoint: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &scaffold.NetworkError{Endpoint: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, 64<<10)
	if err != nil {
		return "", &scaffold.NetworkError{Endpoint: target, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &scaffold.ProtocolError{Field: "status", Reason: serviceMessage(data), Status: resp.StatusCode}
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &health); err != nil {
		return "", &scaffold.ProtocolError{Field: "body", Reason: "health response is not valid JSON"}
	}
	return health.Status, nil
}

var errTooLarge = errors.New("response too large")

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}

// serviceMessage extracts {"error": "..."} from an error body, falling back
// to the raw text.
func serviceMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = "no error message"
	}
	return msg
}
