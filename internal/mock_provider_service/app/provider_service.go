package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

// SendMessageInput carries the form fields of a Messages.json request.
type SendMessageInput struct {
	From           string `param:"From" validate:"required"`
	To             string `param:"To" validate:"required"`
	Body           string `param:"Body" validate:"required"`
	StatusCallback string `param:"StatusCallback"`
}

// MakeCallInput carries the form fields of a Calls.json request.
type MakeCallInput struct {
	From           string `param:"From" validate:"required"`
	To             string `param:"To" validate:"required"`
	URL            string `param:"Url" validate:"required"`
	StatusCallback string `param:"StatusCallback"`
}

// ResourceStore is the persistence the provider service needs.
type ResourceStore interface {
	CreateResource(ctx context.Context, res *domain.Resource) error
	GetResource(ctx context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error)
}

// ProgressionScheduler starts the asynchronous lifecycle of a resource.
type ProgressionScheduler interface {
	// Accepting reports whether Schedule would start a run.
	Accepting() bool
	Schedule(res *domain.Resource) bool
}

// ProviderService accepts messages and calls on behalf of the Twilio API.
type ProviderService struct {
	store      ResourceStore
	scheduler  ProgressionScheduler
	validator  *RequestValidator
	accountSID string
	logger     *slog.Logger
	now        func() time.Time
}

func NewProviderService(store ResourceStore, scheduler ProgressionScheduler, validator *RequestValidator, accountSID string, logger *slog.Logger) *ProviderService {
	return &ProviderService{
		store:      store,
		scheduler:  scheduler,
		validator:  validator,
		accountSID: accountSID,
		logger:     logger.With("component", "provider_service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage validates the request, stores a queued message and schedules
// its progression.
func (s *ProviderService) SendMessage(ctx context.Context, in SendMessageInput) (*domain.Resource, error) {
	if rerr := s.validator.check(&in, in.From, in.To); rerr != nil {
		s.logger.InfoContext(ctx, "Message request rejected", "code", rerr.Code, "field", rerr.Field)
		return nil, rerr
	}

	msg := domain.NewMessage(s.accountSID, in.From, in.To, in.Body, in.StatusCallback, s.now())
	if err := s.accept(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MakeCall validates the request, stores a queued call and schedules its
// progression.
func (s *ProviderService) MakeCall(ctx context.Context, in MakeCallInput) (*domain.Resource, error) {
	if rerr := s.validator.check(&in, in.From, in.To); rerr != nil {
		s.logger.InfoContext(ctx, "Call request rejected", "code", rerr.Code, "field", rerr.Field)
		return nil, rerr
	}

	call := domain.NewCall(s.accountSID, in.From, in.To, in.URL, in.StatusCallback, s.now())
	if err := s.accept(ctx, call); err != nil {
		return nil, err
	}
	return call, nil
}

// accept stores res and schedules its progression. Nothing is stored once the
// scheduler stops accepting runs; a shutdown racing between the store and the
// schedule leaves the resource queued.
func (s *ProviderService) accept(ctx context.Context, res *domain.Resource) error {
	if !s.scheduler.Accepting() {
		return fmt.Errorf("accept %s %s: %w", res.Kind, res.SID, ErrSchedulerClosed)
	}
	if err := s.store.CreateResource(ctx, res); err != nil {
		return fmt.Errorf("store %s %s: %w", res.Kind, res.SID, err)
	}
	resourcesCreatedCounter.WithLabelValues(res.Kind.String()).Inc()

	s.logger.InfoContext(ctx, "Resource created",
		"sid", res.SID, "kind", res.Kind.String(), "from", res.From, "to", res.To,
		"callback", res.CallbackURL != "")

	if !s.scheduler.Schedule(res) {
		return fmt.Errorf("schedule %s %s: %w", res.Kind, res.SID, ErrSchedulerClosed)
	}
	return nil
}

// GetResource returns a stored message or call; domain.ErrNotFound when absent.
func (s *ProviderService) GetResource(ctx context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error) {
	res, err := s.store.GetResource(ctx, kind, sid)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, sid, err)
	}
	return res, nil
}
