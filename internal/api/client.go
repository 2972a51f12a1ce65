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
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultBaseURL is where the backend listens on a default install.
const DefaultBaseURL = "http://127.0.0.1:8000"

const maxResponseBytes = 1 << 20

// RetryPolicy bounds the retries applied to idempotent reads. Writes are
// never retried.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Retry      *RetryPolicy
	Logger     *slog.Logger
}

// Client talks to the SoundStage backend over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

// New creates a Client for the backend at opts.BaseURL.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		}
	}

	policy := DefaultRetryPolicy()
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		retry:      policy,
		logger:     logger,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchCurrent reads the current settings record.
func (c *Client) FetchCurrent(ctx context.Context) (Settings, error) {
	var s Settings
	if err := c.get(ctx, PathSettingsCurrent, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// SaveConsent records the user's consent choices.
func (c *Client) SaveConsent(ctx context.Context, rec ConsentRecord) error {
	return c.post(ctx, PathConsent, nil, rec, nil)
}

// SaveSettings writes the whole settings record.
func (c *Client) SaveSettings(ctx context.Context, s Settings) error {
	return c.post(ctx, PathSettingsUpdate, nil, s, nil)
}

// PatchSettings writes a partial settings record.
func (c *Client) PatchSettings(ctx context.Context, p SettingsPatch) error {
	return c.post(ctx, PathSettingsUpdate, nil, p, nil)
}

// SaveProfile stores the current settings under name.
func (c *Client) SaveProfile(ctx context.Context, name string) error {
	return c.post(ctx, PathProfileSave, url.Values{"profile_name": {name}}, nil, nil)
}

// LoadProfile makes the named profile the current settings.
func (c *Client) LoadProfile(ctx context.Context, name string) error {
	return c.post(ctx, PathProfileLoad, url.Values{"profile_name": {name}}, nil, nil)
}

// ListProfiles returns the names of saved profiles.
func (c *Client) ListProfiles(ctx context.Context) ([]string, error) {
	var resp profilesResponse
	if err := c.get(ctx, PathProfileList, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// Effects returns the effect catalog.
func (c *Client) Effects(ctx context.Context) ([]Effect, error) {
	var resp effectsResponse
	if err := c.get(ctx, PathEffects, &resp); err != nil {
		return nil, err
	}
	return resp.Effects, nil
}

// AudioDevices returns the input devices the backend can capture from.
func (c *Client) AudioDevices(ctx context.Context) ([]Device, error) {
	var resp devicesResponse
	if err := c.get(ctx, PathAudioDevices, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// AnalysisStatus reports whether the analysis engine is running.
func (c *Client) AnalysisStatus(ctx context.Context) (AnalysisStatus, error) {
	var st AnalysisStatus
	if err := c.get(ctx, PathAnalysisStatus, &st); err != nil {
		return AnalysisStatus{}, err
	}
	return st, nil
}

// StartAnalysis starts the analysis engine.
func (c *Client) StartAnalysis(ctx context.Context, req StartAnalysisRequest) error {
	return c.post(ctx, PathAnalysisStart, nil, req, nil)
}

// StopAnalysis stops the analysis engine.
func (c *Client) StopAnalysis(ctx context.Context) error {
	return c.post(ctx, PathAnalysisStop, nil, struct{}{}, nil)
}

// EnableAutoTrigger turns on analysis-driven effect firing.
func (c *Client) EnableAutoTrigger(ctx context.Context) error {
	return c.post(ctx, PathAutoEnable, nil, nil, nil)
}

// DisableAutoTrigger turns off analysis-driven effect firing.
func (c *Client) DisableAutoTrigger(ctx context.Context) error {
	return c.post(ctx, PathAutoDisable, nil, nil, nil)
}

// TriggerManual fires an effect immediately.
func (c *Client) TriggerManual(ctx context.Context, req TriggerRequest) error {
	return c.post(ctx, PathTriggerManual, nil, req, nil)
}

// get performs an idempotent read, retrying transport failures and 5xx/429
// responses with capped exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.retry.MaxRetries <= 0 || c.retry.InitialInterval <= 0 {
		return c.do(ctx, http.MethodGet, path, nil, nil, out)
	}

	b := retry.NewExponential(c.retry.InitialInterval)
	if c.retry.MaxInterval > 0 {
		b = retry.WithCappedDuration(c.retry.MaxInterval, b)
	}
	b = retry.WithJitterPercent(10, b)
	b = retry.WithMaxRetries(uint64(c.retry.MaxRetries), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, nil, nil, out)
		var ne *NetworkError
		if errors.As(err, &ne) && ne.retryable() {
			c.logger.Debug("retrying read", "path", path, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// post performs a mutating call exactly once.
func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("backend unreachable", "method", method, "path", path, "error", err)
		return &NetworkError{Method: method, Path: path, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Method: method, Path: path, Message: "read response: " + err.Error(), Err: err}
	}

	c.logger.Debug("backend call", "method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(data, resp.Status),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &NetworkError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: "malformed response: " + err.Error(),
			Err:     err,
		}
	}
	return nil
}

// errorMessage extracts a human-readable reason from an error body. The
// backend reports {"detail": ...}; the dev stub reports {"error": ...}.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return fallback
}
