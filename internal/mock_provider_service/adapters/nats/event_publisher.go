package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
	"github.com/aradsms/mock_provider/internal/platform/messagebroker"
)

// StatusEvent is the JSON body published for every recorded status transition.
type StatusEvent struct {
	EventID      int64     `json:"event_id"`
	SID          string    `json:"sid"`
	Kind         string    `json:"kind"`
	AccountSID   string    `json:"account_sid"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Status       string    `json:"status"`
	CallbackSent bool      `json:"callback_sent"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher publishes delivery events on "<prefix>.<kind>.status".
type EventPublisher struct {
	publisher     messagebroker.Publisher
	subjectPrefix string
}

func NewEventPublisher(publisher messagebroker.Publisher, subjectPrefix string) *EventPublisher {
	return &EventPublisher{publisher: publisher, subjectPrefix: subjectPrefix}
}

func (p *EventPublisher) Subject(kind domain.ResourceKind) string {
	return fmt.Sprintf("%s.%s.status", p.subjectPrefix, kind)
}

func (p *EventPublisher) PublishDeliveryEvent(ctx context.Context, res *domain.Resource, event *domain.DeliveryEvent) error {
	data, err := json.Marshal(StatusEvent{
		EventID:      event.ID,
		SID:          res.SID,
		Kind:         res.Kind.String(),
		AccountSID:   res.AccountSID,
		From:         res.From,
		To:           res.To,
		Status:       event.Status.String(),
		CallbackSent: event.CallbackSent,
		OccurredAt:   event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	return p.publisher.Publish(ctx, p.Subject(res.Kind), data)
}
