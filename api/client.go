// Package api is the HTTP client for the storefront backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout   = 8 * time.Second
	maxResponseBytes = 4 << 20

	headerIdempotencyKey = "Idempotency-Key"
	contentTypeJSON      = "application/json"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends the request anonymously.
type TokenSource interface {
	Token() string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Breaker trips after this many consecutive transient failures.
	BreakerThreshold uint32
	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// SetTokenSource attaches the session that signs requests. It must be called
// before the client is shared between goroutines.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, header http.Header) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.send(ctx, method, path, payload, contentTypeJSON, out, header)
}

// send runs one request through the breaker and decodes a JSON response into
// out. contentType is ignored when payload is nil.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType string, out any, header http.Header) error {
	start := time.Now()
	res, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, payload, contentType, header)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Code: CodeUnavailable, Message: "backend temporarily unavailable", Err: err}
	}
	if err != nil {
		if IsTransient(err) {
			c.logger.Warn("Backend request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
		return err
	}

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.status),
		zap.Duration("elapsed", time.Since(start)))

	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err = json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, contentType string, header http.Header) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	httpRes, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error(), Err: err}
	}
	defer httpRes.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Status: httpRes.StatusCode, Message: "failed to read response body", Err: err}
	}

	if httpRes.StatusCode >= http.StatusBadRequest {
		return nil, newError(httpRes.StatusCode, data)
	}
	return &response{status: httpRes.StatusCode, body: data}, nil
}

func newError(status int, data []byte) *Error {
	apiErr := &Error{Status: status}

	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.text() != "" {
		apiErr.Message = eb.text()
		apiErr.Code = eb.Code
	} else if text := strings.TrimSpace(string(data)); text != "" {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
