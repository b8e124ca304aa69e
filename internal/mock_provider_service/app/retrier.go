package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
)

// RetryPolicy is a fixed-delay retry policy.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Deliverer performs a single logged webhook attempt.
type Deliverer interface {
	Deliver(ctx context.Context, targetURL string, payload CallbackPayload, attempt int) (DeliveryResult, error)
}

// Retrier delivers one webhook payload with bounded retries.
type Retrier struct {
	deliverer Deliverer
	policy    RetryPolicy
	sleep     SleepFunc
	logger    *slog.Logger
}

func NewRetrier(deliverer Deliverer, policy RetryPolicy, sleep SleepFunc, logger *slog.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	return &Retrier{
		deliverer: deliverer,
		policy:    policy,
		sleep:     sleep,
		logger:    logger.With("component", "webhook_retrier"),
	}
}

// DeliverWithRetry attempts delivery up to MaxAttempts times, waiting Delay
// between a failed attempt and the next one. It reports whether any attempt
// succeeded. Errors are persistence faults or cancellation during a wait.
func (r *Retrier) DeliverWithRetry(ctx context.Context, targetURL string, payload CallbackPayload) (bool, error) {
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		result, err := r.deliverer.Deliver(ctx, targetURL, payload, attempt)
		if err != nil {
			return false, err
		}
		if result.Success {
			return true, nil
		}
		if attempt < r.policy.MaxAttempts {
			if err := r.sleep(ctx, r.policy.Delay); err != nil {
				return false, fmt.Errorf("waiting before callback retry: %w", err)
			}
		}
	}

	webhookDeliveriesExhaustedCounter.Inc()
	r.logger.WarnContext(ctx, "Callback delivery failed after all attempts",
		"url", targetURL, "attempts", r.policy.MaxAttempts)
	return false, nil
}
