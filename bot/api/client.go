// Package api is a typed client for the two Vexa REST backends: the admin
// API (accounts, tokens) and the user-facing gateway API (bots, meetings,
// transcripts). It performs no retries; retry policy belongs to callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vexa-ai/vexabot/core/logger"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	maxErrorBodyBytes      = 4 << 10
)

const (
	headerAdminKey  = "X-Admin-API-Key"
	headerAPIKey    = "X-API-Key"
	headerRequestID = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	GatewayURL string
	AdminURL   string
	AdminToken string

	// Timeout bounds every request; zero selects the 30s default.
	Timeout time.Duration
	// HTTPClient overrides the tuned default client (used in tests).
	HTTPClient *http.Client
}

// Client talks to the Vexa backends. It holds no mutable state beyond static
// endpoint configuration and is safe for concurrent use.
type Client struct {
	gatewayURL string
	adminURL   string
	adminToken string
	http       *http.Client
}

// NewClient constructs a Client with a connection-pooled HTTP transport.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     defaultIdleConnTimeout,
				TLSHandshakeTimeout: defaultTLSHandshake,
			},
		}
	}
	return &Client{
		gatewayURL: opts.GatewayURL,
		adminURL:   opts.AdminURL,
		adminToken: opts.AdminToken,
		http:       httpClient,
	}
}

// CreateUser creates (or finds) an account by email via the admin API.
func (c *Client) CreateUser(ctx context.Context, email, name string) (*User, error) {
	body := map[string]string{"email": email}
	if name != "" {
		body["name"] = name
	}
	var out User
	err := c.do(ctx, http.MethodPost, c.adminURL+"/admin/users",
		map[string]string{headerAdminKey: c.adminToken}, body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserByEmail looks an account up by email via the admin API.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, c.adminURL+"/admin/users/email/"+url.PathEscape(email),
		map[string]string{headerAdminKey: c.adminToken}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateToken issues a fresh API token for an account via the admin API.
func (c *Client) CreateToken(ctx context.Context, userID int64) (*Token, error) {
	var out Token
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/admin/users/%d/tokens", c.adminURL, userID),
		map[string]string{headerAdminKey: c.adminToken}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBot launches a transcription bot into a meeting.
func (c *Client) CreateBot(ctx context.Context, apiKey string, req BotRequest) (*BotStatus, error) {
	var out BotStatus
	err := c.do(ctx, http.MethodPost, c.gatewayURL+"/bots",
		map[string]string{headerAPIKey: apiKey}, req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StopBot stops the bot attached to a meeting.
func (c *Client) StopBot(ctx context.Context, apiKey, platform, nativeMeetingID string) (*BotStatus, error) {
	var out BotStatus
	err := c.do(ctx, http.MethodDelete,
		fmt.Sprintf("%s/bots/%s/%s", c.gatewayURL, url.PathEscape(platform), url.PathEscape(nativeMeetingID)),
		map[string]string{headerAPIKey: apiKey}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunningBots lists the user's currently running bots.
func (c *Client) RunningBots(ctx context.Context, apiKey string) ([]BotStatus, error) {
	var out struct {
		RunningBots []BotStatus `json:"running_bots"`
	}
	err := c.do(ctx, http.MethodGet, c.gatewayURL+"/bots/status",
		map[string]string{headerAPIKey: apiKey}, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.RunningBots, nil
}

// Meetings lists the user's meetings.
func (c *Client) Meetings(ctx context.Context, apiKey string) ([]Meeting, error) {
	var out struct {
		Meetings []Meeting `json:"meetings"`
	}
	err := c.do(ctx, http.MethodGet, c.gatewayURL+"/meetings",
		map[string]string{headerAPIKey: apiKey}, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Meetings, nil
}

// Transcript fetches the transcript of one meeting.
func (c *Client) Transcript(ctx context.Context, apiKey, platform, nativeMeetingID string) (*Transcript, error) {
	var out Transcript
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/transcripts/%s/%s", c.gatewayURL, url.PathEscape(platform), url.PathEscape(nativeMeetingID)),
		map[string]string{headerAPIKey: apiKey}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		classified := classify(err)
		logger.Warn(ctx, "api", "request.fail",
			slog.String("method", method),
			slog.String("url", rawURL),
			slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		logger.Warn(ctx, "api", "request.status",
			slog.String("method", method),
			slog.String("url", rawURL),
			slog.Int("http_code", resp.StatusCode),
			slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}

	logger.Debug(ctx, "api", "request.ok",
		slog.String("method", method),
		slog.String("url", rawURL),
		slog.Int("http_code", resp.StatusCode),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return nil
}

// classify maps low-level request failures into the package's error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &TransportError{Err: err}
}
