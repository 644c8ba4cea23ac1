package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	"github.com/oakline/cabinetry-backend/pkg/logger"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
	"github.com/oakline/cabinetry-backend/pkg/outbox/idempotency"
)

const domainNotificationConsumer = "domain-notifications"

// supervisorRoles receive procurement and stock notifications.
var supervisorRoles = []enums.MemberRole{enums.MemberRoleAdmin, enums.MemberRoleManager}

type repository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

type recipientLister interface {
	ListByRoles(ctx context.Context, roles []enums.MemberRole) ([]models.User, error)
}

// Consumer watches domain events and fans them out as in-app notifications.
type Consumer struct {
	repo         repository
	recipients   recipientLister
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo repository, recipients recipientLister, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient lister required")
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
		recipients:   recipients,
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
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	template, handled := notificationTemplates[enums.OutboxEventType(eventType)]
	if !handled {
		c.logg.Info(logCtx, "skipping event without notification mapping")
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

	aggregateID, err := uuid.Parse(msg.Attributes["aggregate_id"])
	if err != nil {
		c.logg.Error(logCtx, "invalid aggregate id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.fanOut(ctx, template, aggregateID, envelope); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) fanOut(ctx context.Context, template notificationTemplate, aggregateID uuid.UUID, envelope outbox.PayloadEnvelope) error {
	recipients, err := c.recipients.ListByRoles(ctx, supervisorRoles)
	if err != nil {
		return fmt.Errorf("listing recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	message := template.render(envelope.Data)
	link := fmt.Sprintf(template.linkFormat, aggregateID)

	rows := make([]models.Notification, 0, len(recipients))
	for _, user := range recipients {
		// The actor already knows what they did.
		if envelope.Actor != nil && envelope.Actor.UserID == user.ID {
			continue
		}
		rows = append(rows, models.Notification{
			ID:      uuid.New(),
			UserID:  user.ID,
			Type:    template.notificationType,
			Title:   template.title,
			Message: message,
			Link:    &link,
		})
	}
	return c.repo.CreateBatch(ctx, rows)
}

type notificationTemplate struct {
	notificationType enums.NotificationType
	title            string
	linkFormat       string
	render           func(data json.RawMessage) string
}

var notificationTemplates = map[enums.OutboxEventType]notificationTemplate{
	enums.EventStockAdjusted: {
		notificationType: enums.NotificationTypeStockAlert,
		title:            "Stock adjusted",
		linkFormat:       "/items/%s",
		render: func(data json.RawMessage) string {
			var payload struct {
				Delta int    `json:"delta"`
				Type  string `json:"type"`
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				return "Stock levels changed."
			}
			return fmt.Sprintf("Stock changed by %+d (%s).", payload.Delta, payload.Type)
		},
	},
	enums.EventMTOStatusChanged: {
		notificationType: enums.NotificationTypeMTOUpdate,
		title:            "Materials to order updated",
		linkFormat:       "/materials-to-order/%s",
		render: func(data json.RawMessage) string {
			var payload struct {
				Status   string `json:"status"`
				Previous string `json:"previous"`
			}
			if err := json.Unmarshal(data, &payload); err != nil || payload.Status == "" {
				return "Materials-to-order status changed."
			}
			return fmt.Sprintf("Status moved from %s to %s.", payload.Previous, payload.Status)
		},
	},
	enums.EventPOReceived: {
		notificationType: enums.NotificationTypePOUpdate,
		title:            "Purchase order received",
		linkFormat:       "/purchase-orders/%s",
		render: func(data json.RawMessage) string {
			var payload struct {
				Lines int `json:"lines"`
			}
			if err := json.Unmarshal(data, &payload); err != nil || payload.Lines == 0 {
				return "A delivery was received against a purchase order."
			}
			return fmt.Sprintf("A delivery covering %d line(s) was received.", payload.Lines)
		},
	},
	enums.EventPOCancelled: {
		notificationType: enums.NotificationTypePOUpdate,
		title:            "Purchase order cancelled",
		linkFormat:       "/purchase-orders/%s",
		render: func(data json.RawMessage) string {
			var payload struct {
				Reference string `json:"reference"`
			}
			if err := json.Unmarshal(data, &payload); err != nil || payload.Reference == "" {
				return "A purchase order was cancelled."
			}
			return fmt.Sprintf("Purchase order %s was cancelled.", payload.Reference)
		},
	},
}
