package orders

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/outbox"
	"github.com/dvillareal/automarket-backend/pkg/outbox/idempotency"
)

const deliveryConsumer = "order-delivery"

// Consumer completes orders whose shipment reached delivered. Completion is
// what makes an order payout-eligible, so the hop from tracking to orders
// goes through the outbox rather than a direct call.
type Consumer struct {
	service      Service
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the delivery consumer.
func NewConsumer(service Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

type deliveredPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	Delivered bool      `json:"delivered"`
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != enums.EventTrackingStatusChanged {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}

	var payload deliveredPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	if !payload.Delivered {
		return true
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, deliveryConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		return true
	}

	actorID := uuid.Nil
	if envelope.Actor != nil {
		actorID = envelope.Actor.UserID
	}
	if actorID == uuid.Nil {
		c.logg.Error(logCtx, "delivery event has no actor", fmt.Errorf("actor missing"))
		_ = c.idempotency.Delete(ctx, deliveryConsumer, eventID)
		return true
	}
	if err := c.service.MarkCompleted(ctx, payload.OrderID, actorID); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency {
			// A domain rejection is permanent: redelivering the same event
			// cannot change the outcome, so keep the processed marker and
			// drop the message instead of looping it.
			c.logg.Error(logCtx, "order completion rejected", err)
			return true
		}
		c.logg.Error(logCtx, "order completion failed", err)
		_ = c.idempotency.Delete(ctx, deliveryConsumer, eventID)
		return false
	}
	c.logg.Info(c.logg.WithField(logCtx, "order_id", payload.OrderID.String()), "order completed on delivery")
	return true
}
