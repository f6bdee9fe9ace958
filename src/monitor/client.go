// Package monitor talks to the network metrics API: one-shot and historical fetches,
// on-demand protocol tests and Wi-Fi readings, periodic polling and the optional websocket
// stream of live samples.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iafilius/netperfdash/src/types"
)

// Timeframe selects a historical window of the metrics API.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
)

// Timeframes lists the windows the API serves, shortest first.
var Timeframes = []Timeframe{Timeframe24h, Timeframe7d, Timeframe30d}

// ParseTimeframe validates a timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q (want 24h, 7d or 30d)", s)
}

const (
	endpointLatest     = "latest"
	endpointHistorical = "historical"

	maxBodyBytes = 32 << 20
)

// APIError is a failed API call: a non-2xx response or an envelope whose status is not
// "success".
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether the server side may recover on its own (5xx, 429).
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// envelope is the API response wrapper shared by every endpoint.
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
	Timeframe string          `json:"timeframe"`
	Count     int             `json:"count"`
	Data      json.RawMessage `json:"data"`
}

// Client fetches samples from the metrics API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Retry policy for transient failures. MaxRetries 0 disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// TestTimeout bounds ProtocolTest; zero means DefaultTestTimeout.
	TestTimeout time.Duration

	Metrics *Metrics
	log     Logger
}

// NewClient returns a client with a 15s request timeout and three retries.
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   2,
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Transport: transport, Timeout: 15 * time.Second},
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		log:        NewLogger("client"),
	}
}

// Latest fetches the current measurement.
func (c *Client) Latest(ctx context.Context) (types.Sample, error) {
	var s types.Sample
	err := c.fetch(ctx, endpointLatest, "/api/metrics", func(env envelope) error {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return errors.New("response has no data")
		}
		return json.Unmarshal(env.Data, &s)
	})
	if err != nil {
		return types.Sample{}, err
	}
	return s, nil
}

// Historical fetches the samples of a timeframe in the order the API returns them.
// Samples that do not decode are skipped and logged.
func (c *Client) Historical(ctx context.Context, tf Timeframe) ([]types.Sample, error) {
	if _, err := ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	var out []types.Sample
	err := c.fetch(ctx, endpointHistorical, "/api/historical/"+string(tf), func(env envelope) error {
		var raw []json.RawMessage
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &raw); err != nil {
				return err
			}
		}
		out = make([]types.Sample, 0, len(raw))
		skipped := 0
		for _, r := range raw {
			var s types.Sample
			if err := json.Unmarshal(r, &s); err != nil {
				skipped++
				continue
			}
			out = append(out, s)
		}
		if skipped > 0 {
			c.logger().Warnf("historical %s: skipped %d undecodable samples", tf, skipped)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) logger() Logger {
	if c.log.component == "" {
		return NewLogger("client")
	}
	return c.log
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) backoff() retry.Backoff {
	base := c.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithMaxRetries(uint64(max(c.MaxRetries, 0)), b)
	if c.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.MaxDelay, b)
	}
	return b
}

// fetch performs GET path with retries and hands the decoded envelope to decode.
func (c *Client) fetch(ctx context.Context, endpoint, path string, decode func(envelope) error) error {
	start := time.Now()
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.once(ctx, endpoint, path, decode)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		c.Metrics.observeRetry(endpoint)
		c.logger().Debugf("%s transient error, retrying: %v", endpoint, err)
		return retry.RetryableError(err)
	})
	c.Metrics.observeFetch(endpoint, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, endpoint, path string, decode func(envelope) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	var env envelope
	decErr := json.Unmarshal(body, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		if decErr == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}
	if decErr != nil {
		return fmt.Errorf("decode envelope: %w", decErr)
	}
	if env.Status != "success" {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %q", env.Status)
		}
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := decode(env); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// isRetryable is true for network failures and temporary API errors. Context expiry and
// decode errors are final.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
