// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

// Package delivery sends rendered notifications to the outbound channels.
//
// Channels:
//   - Telegram: Bot API sendPhoto/sendMessage per chat id
//   - WeCom: enterprise WeChat app message via token exchange
//   - Discord: incoming webhook
//
// Each channel runs its own retry policy as an explicit attempt loop.
// A failed recipient or channel never affects another; outcomes are
// returned as DeliveryResult values rather than errors. Send only returns
// an error when the channel is not configured.
//
// Security:
//   - Bot tokens, secrets and access tokens are never logged
//   - Transport errors are stripped of their request URL before logging
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embynotify/internal/models"
)

// Channel names, also used as metric labels.
const (
	ChannelTelegram = "telegram"
	ChannelWeCom    = "wecom"
	ChannelDiscord  = "discord"
)

// ErrNotConfigured is returned by Send and Validate when required settings
// are missing. The orchestrator treats it as "skip this channel".
var ErrNotConfigured = errors.New("channel not configured")

// Channel is one outbound notification destination.
type Channel interface {
	// Name returns the channel identifier (telegram, wecom, discord).
	Name() string

	// Validate reports whether the channel has everything it needs.
	Validate() error

	// Send delivers msg. Per-recipient outcomes are in the results; the
	// error is non-nil only when the channel cannot run at all.
	Send(ctx context.Context, msg *models.RenderedMessage) ([]DeliveryResult, error)
}

// AttemptState is where a recipient's delivery ended up.
type AttemptState string

const (
	StateAttempting AttemptState = "attempting"
	StateSucceeded  AttemptState = "succeeded"
	StateExhausted  AttemptState = "exhausted"
	// StateFallback means the image send was abandoned for a text-only send.
	StateFallback AttemptState = "fallback"
)

// DeliveryResult is the outcome for one recipient on one channel.
type DeliveryResult struct {
	Channel   string       `json:"channel"`
	Recipient string       `json:"recipient,omitempty"`
	Success   bool         `json:"success"`
	State     AttemptState `json:"state"`
	Attempts  int          `json:"attempts"`

	// Fallback is set when the text-only fallback was sent.
	Fallback bool `json:"fallback,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	IsTransient  bool   `json:"is_transient,omitempty"`
	ResponseCode int    `json:"response_code,omitempty"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Result label for metrics: success, fallback or failure.
func (r DeliveryResult) Result() string {
	switch {
	case r.Success && r.Fallback:
		return "fallback"
	case r.Success:
		return "success"
	default:
		return "failure"
	}
}

func (r *DeliveryResult) succeed() {
	now := time.Now()
	r.Success = true
	r.DeliveredAt = &now
	r.ErrorCode, r.ErrorMessage, r.IsTransient = "", "", false
	if r.State != StateFallback {
		r.State = StateSucceeded
	}
}

func (r *DeliveryResult) fail(f *failure) {
	r.Success = false
	r.ErrorCode = f.code
	r.ErrorMessage = f.message
	r.IsTransient = isTransient(f.code)
	r.ResponseCode = f.status
}

// Error codes for delivery failures.
const (
	ErrorCodeInvalidConfig    = "INVALID_CONFIG"
	ErrorCodeConnectionFailed = "CONNECTION_FAILED"
	ErrorCodeTimeout          = "TIMEOUT"
	ErrorCodeAuthFailed       = "AUTH_FAILED"
	ErrorCodeRateLimited      = "RATE_LIMITED"
	ErrorCodeServerError      = "SERVER_ERROR"
	ErrorCodeAPIError         = "API_ERROR"
	ErrorCodeUnknown          = "UNKNOWN"
)

// failure describes why one attempt did not succeed.
type failure struct {
	code    string
	message string
	status  int
}

func (f *failure) Error() string { return f.code + ": " + f.message }

// Sleeper waits between attempts. It returns early with ctx's error.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// options shared by every channel constructor.
type options struct {
	client *http.Client
	sleep  Sleeper
}

// Option customizes a channel.
type Option func(*options)

// WithHTTPClient overrides the HTTP client. Per-request timeouts still apply
// through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithSleeper overrides the backoff sleeper (tests).
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{
		client: &http.Client{Timeout: timeout},
		sleep:  SleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// doJSON sends body as JSON (nil body means GET) and decodes a JSON reply
// into out when out is non-nil. It returns the HTTP status.
func doJSON(ctx context.Context, client *http.Client, method, target string, body, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, &failure{code: ErrorCodeUnknown, message: fmt.Sprintf("failed to marshal payload: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, &failure{code: ErrorCodeUnknown, message: fmt.Sprintf("failed to create request: %v", stripURL(err))}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &failure{code: classifyHTTPError(err), message: stripURL(err).Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, &failure{code: ErrorCodeConnectionFailed, message: fmt.Sprintf("failed to read response: %v", err), status: resp.StatusCode}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, &failure{
				code:    classifyHTTPStatusCode(resp.StatusCode),
				message: fmt.Sprintf("failed to parse response (HTTP %d): %v", resp.StatusCode, err),
				status:  resp.StatusCode,
			}
		}
	}
	return resp.StatusCode, nil
}

func asFailure(err error) *failure {
	var f *failure
	if errors.As(err, &f) {
		return f
	}
	return &failure{code: ErrorCodeUnknown, message: err.Error()}
}

// stripURL drops the request URL from transport errors; it can carry a bot
// token or access token.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

// classifyHTTPError classifies a transport error into an error code.
func classifyHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrorCodeTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorCodeConnectionFailed
	}
	return ErrorCodeUnknown
}

// classifyHTTPStatusCode classifies an HTTP status code into an error code.
func classifyHTTPStatusCode(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorCodeAuthFailed
	case code == http.StatusTooManyRequests:
		return ErrorCodeRateLimited
	case code >= 500:
		return ErrorCodeServerError
	case code >= 400:
		return ErrorCodeAPIError
	default:
		return ErrorCodeUnknown
	}
}

// isTransient reports whether a retry could plausibly succeed.
func isTransient(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited, ErrorCodeServerError:
		return true
	default:
		return false
	}
}

// TruncateRunes shortens s to at most n runes, ending with "..." when cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
