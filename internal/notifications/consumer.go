package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/outbox"
	"github.com/dvillareal/automarket-backend/pkg/outbox/idempotency"
)

const walletNotificationConsumer = "wallet-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns ledger and shipment activity
// into partner notifications. Notification failures are logged and the
// message is redelivered; they never reach back into the emitting flow.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
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
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	handler, ok := c.handlerFor(eventType)
	if !ok {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, walletNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, walletNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

type handlerFunc func(ctx context.Context, data json.RawMessage, logCtx context.Context) error

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) (handlerFunc, bool) {
	switch eventType {
	case enums.EventPayoutCompleted:
		return c.handlePayoutCompleted, true
	case enums.EventOrderCancelled:
		return c.handleOrderCancelled, true
	case enums.EventTrackingStatusChanged:
		return c.handleTrackingStatusChanged, true
	default:
		return nil, false
	}
}

type payoutCompletedPayload struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Earnings  decimal.Decimal `json:"earnings"`
}

func (c *Consumer) handlePayoutCompleted(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payoutCompletedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.PartnerID == uuid.Nil {
		return fmt.Errorf("partner id missing")
	}
	link := fmt.Sprintf("/partners/orders/%s", payload.OrderID)
	notification := &models.Notification{
		UserID:  payload.PartnerID,
		Type:    enums.NotificationTypePayoutCompleted,
		Title:   "Payout received",
		Message: fmt.Sprintf("Commission of %s has been credited to your wallet.", payload.Earnings.StringFixed(2)),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "partner notified of payout")
	return nil
}

type orderCancelledPayload struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Reason    string          `json:"reason"`
	Refunded  bool            `json:"refunded"`
	Amount    decimal.Decimal `json:"amount"`
}

func (c *Consumer) handleOrderCancelled(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload orderCancelledPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.PartnerID == uuid.Nil {
		return fmt.Errorf("partner id missing")
	}
	message := fmt.Sprintf("Order was cancelled: %s", payload.Reason)
	if payload.Refunded {
		message = fmt.Sprintf("Order was cancelled and %s was refunded to the wallet: %s", payload.Amount.StringFixed(2), payload.Reason)
	}
	link := fmt.Sprintf("/partners/orders/%s", payload.OrderID)
	notification := &models.Notification{
		UserID:  payload.PartnerID,
		Type:    enums.NotificationTypeOrderRefunded,
		Title:   "Order cancelled",
		Message: message,
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "partner notified of cancellation")
	return nil
}

type trackingStatusChangedPayload struct {
	TrackingID     uuid.UUID            `json:"tracking_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	PartnerID      uuid.UUID            `json:"partner_id"`
	TrackingNumber string               `json:"tracking_number"`
	Status         enums.TrackingStatus `json:"status"`
	Delivered      bool                 `json:"delivered"`
}

func (c *Consumer) handleTrackingStatusChanged(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload trackingStatusChangedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.PartnerID == uuid.Nil {
		return fmt.Errorf("partner id missing")
	}
	title := "Shipment updated"
	if payload.Delivered {
		title = "Shipment delivered"
	}
	link := fmt.Sprintf("/tracking/%s", payload.TrackingNumber)
	notification := &models.Notification{
		UserID:  payload.PartnerID,
		Type:    enums.NotificationTypeTrackingUpdated,
		Title:   title,
		Message: fmt.Sprintf("Shipment %s is now %s.", payload.TrackingNumber, payload.Status),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "partner notified of shipment update")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
