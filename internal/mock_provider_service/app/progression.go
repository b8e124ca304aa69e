package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

const DefaultStatusDelay = 2 * time.Second

// ProgressionSettings is the immutable configuration of a ProgressionDriver.
type ProgressionSettings struct {
	AccountSID        string
	CallbacksEnabled  bool
	StatusDelay       time.Duration
	FailureNumbers    NumberSet
	RegisteredNumbers NumberSet
}

// StatusStore is the persistence the driver writes to.
type StatusStore interface {
	UpdateStatus(ctx context.Context, kind domain.ResourceKind, sid string, status domain.Status) error
	CreateDeliveryEvent(ctx context.Context, event *domain.DeliveryEvent) error
}

// CallbackSender delivers a callback payload with retries.
type CallbackSender interface {
	DeliverWithRetry(ctx context.Context, targetURL string, payload CallbackPayload) (bool, error)
}

// EventPublisher fans recorded delivery events out to other systems.
type EventPublisher interface {
	PublishDeliveryEvent(ctx context.Context, res *domain.Resource, event *domain.DeliveryEvent) error
}

// ProgressionDriver walks a resource through its simulated lifecycle.
type ProgressionDriver struct {
	store     StatusStore
	callbacks CallbackSender
	publisher EventPublisher
	settings  ProgressionSettings
	sleep     SleepFunc
	now       func() time.Time
	logger    *slog.Logger
}

type DriverOption func(*ProgressionDriver)

// WithEventPublisher publishes every recorded delivery event.
func WithEventPublisher(p EventPublisher) DriverOption {
	return func(d *ProgressionDriver) { d.publisher = p }
}

// WithSleep replaces the sleep used between transitions.
func WithSleep(sleep SleepFunc) DriverOption {
	return func(d *ProgressionDriver) { d.sleep = sleep }
}

func NewProgressionDriver(store StatusStore, callbacks CallbackSender, settings ProgressionSettings, logger *slog.Logger, opts ...DriverOption) *ProgressionDriver {
	if settings.FailureNumbers == nil {
		settings.FailureNumbers = NumberSet{}
	}
	if settings.RegisteredNumbers == nil {
		settings.RegisteredNumbers = NumberSet{}
	}
	d := &ProgressionDriver{
		store:     store,
		callbacks: callbacks,
		settings:  settings,
		sleep:     SleepContext,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "progression_driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run applies the status sequence for res, one transition at a time.
//
// Destinations on neither number list are left queued and Run returns at
// once. Otherwise Run waits the status delay before each transition, persists
// the status, sends the callback if the resource has a URL and callbacks are
// enabled, and records a delivery event. A failed callback does not stop the
// run; a persistence error or cancellation does.
func (d *ProgressionDriver) Run(ctx context.Context, res *domain.Resource) (err error) {
	outcome := Classify(res.To, d.settings.FailureNumbers, d.settings.RegisteredNumbers)
	logger := d.logger.With("sid", res.SID, "kind", res.Kind.String(), "outcome", outcome.String())

	result := "completed"
	defer func() {
		if err != nil {
			result = "error"
		}
		progressionRunsCounter.WithLabelValues(res.Kind.String(), outcome.String(), result).Inc()
	}()

	sequence := domain.Sequence(res.Kind, outcome)
	if len(sequence) == 0 {
		result = "skipped"
		logger.InfoContext(ctx, "Destination not on any number list; leaving resource queued", "to", res.To)
		return nil
	}

	if err := d.sleep(ctx, d.settings.StatusDelay); err != nil {
		return fmt.Errorf("%s %s: waiting before first transition: %w", res.Kind, res.SID, err)
	}

	for i, status := range sequence {
		if err := d.store.UpdateStatus(ctx, res.Kind, res.SID, status); err != nil {
			return fmt.Errorf("%s %s: update status to %s: %w", res.Kind, res.SID, status, err)
		}
		statusTransitionsCounter.WithLabelValues(res.Kind.String(), status.String()).Inc()
		logger.InfoContext(ctx, "Status updated", "status", status.String())

		sent := false
		if res.CallbackURL != "" && d.settings.CallbacksEnabled {
			payload := BuildCallbackPayload(res, d.settings.AccountSID, status)
			delivered, err := d.callbacks.DeliverWithRetry(ctx, res.CallbackURL, payload)
			if err != nil {
				return fmt.Errorf("%s %s: callback for %s: %w", res.Kind, res.SID, status, err)
			}
			if !delivered {
				logger.WarnContext(ctx, "Status callback not delivered", "status", status.String(), "url", res.CallbackURL)
			}
			sent = delivered
		}

		event := &domain.DeliveryEvent{
			ResourceSID:  res.SID,
			ResourceKind: res.Kind,
			EventType:    domain.EventTypeStatusUpdate,
			Status:       status,
			CallbackSent: sent,
			CreatedAt:    d.now(),
		}
		if err := d.store.CreateDeliveryEvent(ctx, event); err != nil {
			return fmt.Errorf("%s %s: record %s event: %w", res.Kind, res.SID, status, err)
		}

		if d.publisher != nil {
			if err := d.publisher.PublishDeliveryEvent(ctx, res, event); err != nil {
				logger.WarnContext(ctx, "Failed to publish delivery event", "status", status.String(), "error", err)
			}
		}

		if i < len(sequence)-1 {
			if err := d.sleep(ctx, d.settings.StatusDelay); err != nil {
				return fmt.Errorf("%s %s: waiting after %s: %w", res.Kind, res.SID, status, err)
			}
		}
	}

	logger.InfoContext(ctx, "Progression finished", "final_status", sequence[len(sequence)-1].String())
	return nil
}
