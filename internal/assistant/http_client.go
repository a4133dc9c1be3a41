package assistant

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
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

var errUnexpectedStatus = errors.New("unexpected status from assistant")

// HTTPClient calls the assistant backend over its JSON API.
type HTTPClient struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	BaseURL       string
	AskTimeout    time.Duration
	HealthTimeout time.Duration
	RatePerSecond float64
	Burst         int
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       "http://localhost:5000",
		AskTimeout:    10 * time.Second,
		HealthTimeout: 5 * time.Second,
		RatePerSecond: 20,
		Burst:         40,
	}
}

// DefaultTransport returns an http.Transport tuned for a single upstream host.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = def.AskTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = def.HealthTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Transport: DefaultTransport()},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:     logger.With("component", "assistant", "base_url", cfg.BaseURL),
		now:        time.Now,
	}
}

// AskTimeout returns the per-request deadline applied by Ask.
func (c *HTTPClient) AskTimeout() time.Duration {
	return c.cfg.AskTimeout
}

// Ask sends one utterance to POST /api/chat.
func (c *HTTPClient) Ask(ctx context.Context, utterance string) domain.AssistantReply {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AskTimeout)
	defer cancel()

	start := c.now()
	resp, err := c.postJSON(ctx, "/api/chat", chatRequest{Message: utterance})
	if err != nil {
		reason := classifyError(ctx, err)
		c.logger.Warn("assistant request failed", "reason", reason, "error", err)
		return domain.FailureReply(reason)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusServiceUnavailable {
		c.logger.Warn("assistant unavailable", "status", resp.StatusCode)
		return domain.FailureReply(domain.FailureServiceUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("assistant returned error status", "status", resp.StatusCode)
		return domain.FailureReply(domain.FailureServerError)
	}

	var payload chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			reason := classifyError(ctx, ctx.Err())
			c.logger.Warn("assistant response interrupted", "reason", reason, "error", err)
			return domain.FailureReply(reason)
		}
		c.logger.Warn("failed to decode assistant response", "error", err)
		return domain.FailureReply(domain.FailureServerError)
	}

	if payload.Status != statusSuccess {
		c.logger.Info("assistant reported logical failure", "status", payload.Status, "error", payload.Error)
		return domain.AssistantReply{Success: &domain.ReplySuccess{
			Text:           LogicalFailureText,
			Category:       LogicalFailureCategory,
			Confidence:     0,
			LogicalFailure: true,
		}}
	}

	c.logger.Debug("assistant replied",
		"category", payload.Category,
		"confidence", payload.Confidence,
		"latency", c.now().Sub(start),
	)
	return domain.SuccessReply(payload.Message, payload.Category, payload.Confidence, payload.ResponseTime)
}

// SendFeedback posts a feedback verdict. Errors are logged and swallowed.
func (c *HTTPClient) SendFeedback(ctx context.Context, sign domain.FeedbackSign, messageID int64) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AskTimeout)
	defer cancel()

	resp, err := c.postJSON(ctx, "/api/feedback", feedbackRequest{
		Type:      string(sign),
		MessageID: messageID,
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		c.logger.Warn("failed to send feedback", "message_id", messageID, "error", err)
		return
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("feedback rejected", "message_id", messageID, "status", resp.StatusCode)
	}
}

// CheckHealth probes GET /health. Any 2xx with a decodable body counts as reachable.
func (c *HTTPClient) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		c.logger.Warn("failed to build health request", "error", err)
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("assistant health check failed", "error", err)
		return false
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("assistant health check returned error status", "status", resp.StatusCode)
		return false
	}

	var payload healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		c.logger.Warn("failed to decode health response", "error", err)
		return false
	}
	if !payload.ChatbotReady {
		errText := ""
		if payload.ChatbotError != nil {
			errText = *payload.ChatbotError
		}
		c.logger.Warn("assistant reachable but not ready", "status", payload.Status, "chatbot_error", errText)
	}
	return true
}

// Stats fetches the backend's GET /api/stats payload.
func (c *HTTPClient) Stats(ctx context.Context) (BackendStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("creating stats request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching assistant stats: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var stats BackendStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding assistant stats: %w", err)
	}
	return stats, nil
}

// postJSON waits for the rate limiter before sending, the same way every call does.
func (c *HTTPClient) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// classifyError maps a transport error onto the closed failure set.
func classifyError(ctx context.Context, err error) domain.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureTimeout
	}
	// The limiter refuses to wait past the deadline without reporting DeadlineExceeded.
	if _, ok := ctx.Deadline(); ok && ctx.Err() == nil && isLimiterRefusal(err) {
		return domain.FailureTimeout
	}
	return domain.FailureNetworkError
}

func isLimiterRefusal(err error) bool {
	return strings.Contains(err.Error(), "would exceed context deadline")
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}
