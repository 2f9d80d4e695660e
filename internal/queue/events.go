package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/model"
)

// TopicDeliveries carries one DeliveryEvent per dispatched message outcome.
const TopicDeliveries = "followup_deliveries"

type DeliveryEvent struct {
	MessageID         uuid.UUID           `json:"message_id"`
	ParentKind        model.ParentKind    `json:"parent_kind"`
	ParentID          uuid.UUID           `json:"parent_id"`
	Status            model.MessageStatus `json:"status"`
	ProviderMessageID string              `json:"provider_message_id,omitempty"`
	Error             string              `json:"error,omitempty"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

// DecodeDeliveryEvent accepts the in-memory payload (the event itself) and the AMQP
// payload (its JSON body).
func DecodeDeliveryEvent(payload any) (DeliveryEvent, error) {
	switch p := payload.(type) {
	case DeliveryEvent:
		return p, nil
	case *DeliveryEvent:
		if p == nil {
			return DeliveryEvent{}, fmt.Errorf("nil delivery event")
		}
		return *p, nil
	case []byte:
		var ev DeliveryEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			return DeliveryEvent{}, fmt.Errorf("decode delivery event: %w", err)
		}
		return ev, nil
	default:
		return DeliveryEvent{}, fmt.Errorf("unexpected delivery event payload %T", payload)
	}
}

// StartDeliveryLogSubscriber records every delivery outcome in the log. Malformed payloads
// are dropped rather than retried.
func StartDeliveryLogSubscriber(q Queue, logger *zap.Logger) error {
	return q.Subscribe(TopicDeliveries, func(payload any) error {
		ev, err := DecodeDeliveryEvent(payload)
		if err != nil {
			logger.Warn("invalid delivery event", zap.Error(err))
			return nil
		}

		fields := []zap.Field{
			zap.String("message_id", ev.MessageID.String()),
			zap.String("parent", model.ParentRef{Kind: ev.ParentKind, ID: ev.ParentID}.String()),
			zap.String("status", string(ev.Status)),
			zap.Time("occurred_at", ev.OccurredAt),
		}
		if ev.ProviderMessageID != "" {
			fields = append(fields, zap.String("provider_message_id", ev.ProviderMessageID))
		}
		if ev.Error != "" {
			fields = append(fields, zap.String("error", ev.Error))
		}
		logger.Info("follow-up delivery", fields...)
		return nil
	})
}
