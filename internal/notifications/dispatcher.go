package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/logger"
)

// OrderEvent is the envelope published for every order lifecycle change.
// Downstream channels (email, SMS, push) consume the topic; delivery
// mechanics live outside this service.
type OrderEvent struct {
	Type          enums.OrderEventType `json:"type"`
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   int64                `json:"order_number"`
	UserID        uuid.UUID            `json:"user_id"`
	Status        string               `json:"status,omitempty"`
	PaymentStatus string               `json:"payment_status,omitempty"`
	AgentID       *uuid.UUID           `json:"agent_id,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// Dispatcher fans order events out to the notification topic. Publishing is
// best-effort: a lost notification must never fail the order flow, so errors
// are logged and swallowed.
type Dispatcher struct {
	publisher publisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewDispatcher wires a dispatcher around a Pub/Sub publisher handle.
func NewDispatcher(pub *gcppubsub.Publisher, logg *logger.Logger) (*Dispatcher, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Dispatcher{publisher: newGCPPublisher(pub), logg: logg, now: time.Now}, nil
}

// OrderEvent publishes the event as JSON. Never returns an error.
func (d *Dispatcher) OrderEvent(ctx context.Context, event OrderEvent) {
	if d == nil || d.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}

	ctx = d.logg.WithOrderID(ctx, event.OrderID.String())
	payload, err := json.Marshal(event)
	if err != nil {
		d.logg.Error(ctx, "marshal order event", err)
		return
	}

	result := d.publisher.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": string(event.Type),
		},
	})
	if result == nil {
		return
	}
	if _, err := result.Get(ctx); err != nil {
		d.logg.Error(ctx, "publish order event", err)
	}
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
