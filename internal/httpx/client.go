package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"go.uber.org/zap"
)

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	userAgent  string
	logger     *zap.Logger
}

type Option func(*Client)

// WithLogger makes the client log each round trip at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client whose every call is bounded by timeout. Retries are
// off unless asked for.
func New(timeout time.Duration, retries int, opts ...Option) *Client {
	if retries < 0 {
		retries = 0
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		retries:    retries,
		userAgent:  "sensei/1.0",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, mapContextError(ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		header, retry, err := c.roundTrip(ctx, req, out)
		if err == nil {
			return header, nil
		}
		lastErr = err
		if !retry || attempt >= c.retries {
			return header, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, clierr.New(clierr.CodeUnavailable, "request failed")
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, out any) (http.Header, bool, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cloneReq := req.Clone(callCtx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false, clierr.Wrap(clierr.CodeInternal, "clone request body", err)
		}
		cloneReq.Body = body
	}

	start := time.Now()
	resp, err := c.httpClient.Do(cloneReq)
	if err != nil {
		c.logger.Debug("provider request failed",
			zap.String("url", req.URL.String()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		if callCtx.Err() != nil {
			return nil, true, mapContextError(callCtx.Err())
		}
		return nil, true, mapNetError(err)
	}

	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	c.logger.Debug("provider request",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(buf)),
		zap.Duration("latency", time.Since(start)),
	)
	if readErr != nil {
		if callCtx.Err() != nil {
			return resp.Header, true, mapContextError(callCtx.Err())
		}
		return resp.Header, true, clierr.Wrap(clierr.CodeUnavailable, "read provider response", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.Header, true, clierr.New(clierr.CodeRateLimited, "provider rate limited request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.Header, false, clierr.New(clierr.CodeAuth, "provider authentication failed")
	case resp.StatusCode >= http.StatusInternalServerError:
		return resp.Header, true, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("provider unavailable (status %d)", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.Header, false, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("provider returned unexpected status %d", resp.StatusCode))
	}

	if out == nil {
		return resp.Header, false, nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return resp.Header, false, clierr.New(clierr.CodeParse, "provider returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return resp.Header, false, clierr.Wrap(clierr.CodeParse, "decode provider JSON", err)
	}
	return resp.Header, false, nil
}

// GetJSON issues a GET and decodes the body into out.
func GetJSON(ctx context.Context, c *Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	_, err = c.DoJSON(ctx, req, out)
	return err
}

func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return clierr.Wrap(clierr.CodeTimeout, "provider timeout", err)
	}
	return clierr.Wrap(clierr.CodeCancelled, "request cancelled", err)
}

func mapNetError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeTimeout, "provider timeout", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "provider request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
