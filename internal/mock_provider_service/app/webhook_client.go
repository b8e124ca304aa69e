package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

const (
	// WebhookTimeout bounds one callback HTTP attempt.
	WebhookTimeout = 10 * time.Second
	// MaxLoggedResponseBody is the number of characters of a response body kept in a callback log.
	MaxLoggedResponseBody = 500

	maxReadResponseBody = 64 << 10
)

// DeliveryResult is the outcome of one webhook attempt.
type DeliveryResult struct {
	Success bool
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int
	// Body is the response body, or the error description on transport failure.
	Body string
}

// CallbackLogWriter persists callback attempt logs.
type CallbackLogWriter interface {
	CreateCallbackLog(ctx context.Context, log *domain.CallbackLog) error
}

// WebhookClient performs single status callback attempts.
type WebhookClient struct {
	httpClient *http.Client
	logs       CallbackLogWriter
	logger     *slog.Logger
	now        func() time.Time
}

type WebhookClientOption func(*WebhookClient)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) WebhookClientOption {
	return func(w *WebhookClient) { w.httpClient = c }
}

func NewWebhookClient(logs CallbackLogWriter, logger *slog.Logger, opts ...WebhookClientOption) *WebhookClient {
	c := &WebhookClient{
		httpClient: &http.Client{Timeout: WebhookTimeout},
		logs:       logs,
		logger:     logger.With("component", "webhook_client"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver POSTs payload form-encoded to targetURL once and records the attempt.
// Network and HTTP failures are reported through DeliveryResult; the returned
// error is non-nil only when the attempt could not be logged.
func (c *WebhookClient) Deliver(ctx context.Context, targetURL string, payload CallbackPayload, attempt int) (DeliveryResult, error) {
	logger := c.logger.With("url", targetURL, "attempt", attempt)
	start := time.Now()

	result := c.post(ctx, targetURL, payload)

	label := "success"
	switch {
	case result.StatusCode == 0:
		label = "transport_error"
		logger.WarnContext(ctx, "Callback request failed", "error", result.Body)
	case !result.Success:
		label = "http_error"
		logger.WarnContext(ctx, "Callback rejected", "status_code", result.StatusCode)
	default:
		logger.InfoContext(ctx, "Callback delivered", "status_code", result.StatusCode)
	}
	webhookAttemptsCounter.WithLabelValues(label).Inc()
	webhookAttemptDurationHist.WithLabelValues(label).Observe(time.Since(start).Seconds())

	entry := &domain.CallbackLog{
		TargetURL:     targetURL,
		Payload:       payload.JSON(),
		ResponseBody:  truncateRunes(result.Body, MaxLoggedResponseBody),
		AttemptNumber: attempt,
		CreatedAt:     c.now(),
	}
	if result.StatusCode != 0 {
		code := result.StatusCode
		entry.StatusCode = &code
	}
	if err := c.logs.CreateCallbackLog(ctx, entry); err != nil {
		return result, fmt.Errorf("record callback attempt %d for %s: %w", attempt, targetURL, err)
	}

	return result, nil
}

func (c *WebhookClient) post(ctx context.Context, targetURL string, payload CallbackPayload) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(payload.Form().Encode()))
	if err != nil {
		return DeliveryResult{Body: "Error: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeliveryResult{Body: "Error: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReadResponseBody))
	if err != nil {
		c.logger.DebugContext(ctx, "Failed to read callback response body", "error", err)
	}

	return DeliveryResult{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
