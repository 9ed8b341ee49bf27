// Package feishu provides HTTP client functionality for the Feishu open API
package feishu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/errors"
	"github.com/kart-io/clawprobe/pkg/logger"
	"github.com/kart-io/clawprobe/pkg/observability"
)

const platformName = "feishu"

const userAgent = "clawprobe-feishu-client/1.0"

// API is the subset of the Feishu open API used by the prober
type API interface {
	// TenantAccessToken returns a valid tenant access token. Token refresh
	// does not count against the app's API call quota.
	TenantAccessToken(ctx context.Context) (string, error)

	// BotInfo fetches the bot identity. The response is returned even when
	// its code is non-zero.
	BotInfo(ctx context.Context) (*BotInfoResponse, error)
}

// ClientMetrics contains counters for API requests made by a client
type ClientMetrics struct {
	RequestCount, SuccessCount, ErrorCount, RetryCount int64
}

// Client talks to the Feishu open API on behalf of one app.
// Creating a client performs no network I/O.
type Client struct {
	creds       Credentials
	cfg         config.FeishuConfig
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryPolicy errors.RetryPolicy
	retry       *errors.RetryExecutor
	logger      logger.Logger
	telemetry   *observability.TelemetryProvider
	now         func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	metrics ClientMetrics
	closed  int32
}

// envelope is the common part of every open API response
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewClient creates a client for creds. Options without WithConfig use the
// default Feishu settings.
func NewClient(creds Credentials, opts ...ClientOption) (*Client, error) {
	if !creds.Complete() {
		return nil, errors.New(errors.ErrMissingCredentials, "missing credentials (appId, appSecret)").WithPlatform(platformName)
	}

	c := &Client{
		creds:  creds,
		cfg:    *DefaultConfig(),
		logger: logger.Discard,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	SetDefaults(&c.cfg)
	if err := ValidateConfig(&c.cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "invalid feishu configuration").WithPlatform(platformName)
	}

	if c.httpClient == nil {
		c.httpClient = createHTTPClient(c.cfg.Timeout)
	}

	if c.retryPolicy == nil {
		c.retryPolicy = errors.DefaultRetryPolicy(c.cfg.MaxRetries)
	}
	c.retry = errors.NewRetryExecutor(c.retryPolicy, c.logger)

	if c.limiter == nil {
		c.limiter = NewLimiter(c.cfg.RateLimit)
	}

	return c, nil
}

// requestsPerCheck is the most requests one full bot check sends
// (token then bot info). The burst never drops below it.
const requestsPerCheck = 2

// NewLimiter converts requests per minute into a token bucket that allows a
// minute's worth of requests as a burst. Share one limiter between the
// clients of an app so the limit holds across clients.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), max(perMinute, requestsPerCheck))
}

// createHTTPClient creates an HTTP client with custom transport settings
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// AppID returns the app the client acts for
func (c *Client) AppID() string {
	return c.creds.AppID
}

// BaseURL returns the open platform host in use
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// do sends one API request with rate limiting and retries, then decodes the
// body into out. A non-zero response code is not an error at this level.
func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return errors.New(errors.ErrClientClosed, "feishu client is closed").WithPlatform(platformName)
	}

	ctx, span := c.telemetry.TraceAPICall(ctx, method, path)
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrInvalidConfig, "failed to marshal request").WithPlatform(platformName)
		}
	}

	attempts := 0
	err := c.retry.Execute(ctx, func() error {
		attempts++
		atomic.AddInt64(&c.metrics.RequestCount, 1)
		if attempts > 1 {
			atomic.AddInt64(&c.metrics.RetryCount, 1)
		}
		return c.send(ctx, method, path, payload, bearer, out)
	})
	if err != nil {
		atomic.AddInt64(&c.metrics.ErrorCount, 1)
		c.telemetry.SetSpanError(span, err)
		c.logger.Debug("Feishu API request failed", "path", path, "attempts", attempts, "error", err)
		return err
	}

	atomic.AddInt64(&c.metrics.SuccessCount, 1)
	c.telemetry.SetSpanSuccess(span)
	return nil
}

// send performs a single HTTP round trip
func (c *Client) send(ctx context.Context, method, path string, payload []byte, bearer string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, errors.ErrRateLimited, "rate limit wait failed").WithPlatform(platformName)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidConfig, "failed to create HTTP request").WithPlatform(platformName)
	}

	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.telemetry.RecordAPICall(ctx, path, 0)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, errors.ErrNetwork, "").WithPlatform(platformName)
	}
	defer func() { _ = resp.Body.Close() }()

	c.telemetry.RecordAPICall(ctx, path, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrNetwork, "failed to read response body").WithPlatform(platformName)
	}

	c.logger.Debug("Feishu API response", "path", path, "statusCode", resp.StatusCode, "size", len(data))

	return decodeResponse(resp.StatusCode, data, out)
}

// decodeResponse classifies the HTTP status and decodes the body. Non-2xx
// responses that carry an open API envelope with a non-zero code are decoded
// like 2xx ones, so that the caller sees the provider's message.
func decodeResponse(status int, data []byte, out any) error {
	switch {
	case status >= 500:
		return errors.Newf(errors.ErrHTTPStatus, "feishu API returned HTTP %d", status).
			WithPlatform(platformName).WithStatusCode(status).WithRetryable(true)
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrRateLimited, "feishu API rate limit exceeded").
			WithPlatform(platformName).WithStatusCode(status)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if status < 200 || status >= 300 {
			return errors.Newf(errors.ErrHTTPStatus, "feishu API returned HTTP %d", status).
				WithPlatform(platformName).WithStatusCode(status)
		}
		return errors.Wrap(err, errors.ErrInvalidResponse, "invalid feishu API response").WithPlatform(platformName)
	}

	if (status < 200 || status >= 300) && env.Code == 0 {
		return errors.Newf(errors.ErrHTTPStatus, "feishu API returned HTTP %d", status).
			WithPlatform(platformName).WithStatusCode(status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrInvalidResponse, "invalid feishu API response").WithPlatform(platformName)
	}
	return nil
}

// GetMetrics returns current client metrics
func (c *Client) GetMetrics() ClientMetrics {
	return ClientMetrics{
		RequestCount: atomic.LoadInt64(&c.metrics.RequestCount),
		SuccessCount: atomic.LoadInt64(&c.metrics.SuccessCount),
		ErrorCount:   atomic.LoadInt64(&c.metrics.ErrorCount),
		RetryCount:   atomic.LoadInt64(&c.metrics.RetryCount),
	}
}

// Close releases idle connections; later requests fail with CLIENT_CLOSED
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// apiErrorMessage formats a non-zero response code the way probe results report it
func apiErrorMessage(code int, msg string) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("code %d", code)
}

// NewAPIError creates the error for a non-zero open API response code
func NewAPIError(code int, msg string) *errors.Error {
	return errors.New(errors.ErrAPI, "API error: "+apiErrorMessage(code, msg)).
		WithPlatform(platformName).
		WithMetadata("code", code)
}
