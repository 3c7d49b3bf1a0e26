package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func productKey(id int64) string {
	return fmt.Sprintf("product-%d", id)
}

// PublishProductCreated publishes ProductCreated event
func (ep *EventPublisher) PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishPricesObserved publishes a batch of PriceObserved events keyed by
// product so each product's history stays ordered within a partition.
func (ep *EventPublisher) PublishPricesObserved(ctx context.Context, events []*models.PriceObservedEvent) error {
	keyed := make([]KeyedEvent, 0, len(events))
	for _, e := range events {
		keyed = append(keyed, KeyedEvent{Key: productKey(e.ProductID), Event: e})
	}
	return ep.producer.PublishEvents(ctx, keyed)
}

// PublishPassCompleted publishes PassCompleted event
func (ep *EventPublisher) PublishPassCompleted(ctx context.Context, event *models.PassCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, "pass-"+event.PassID, event)
}

// NopPublisher drops every event. It stands in when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishProductCreated(context.Context, *models.ProductCreatedEvent) error {
	return nil
}

func (NopPublisher) PublishPricesObserved(context.Context, []*models.PriceObservedEvent) error {
	return nil
}

func (NopPublisher) PublishPassCompleted(context.Context, *models.PassCompletedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onSweepRequested func(context.Context, *models.SweepRequestedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSweepRequested registers a handler for SweepRequested events
func (eh *EventHandler) OnSweepRequested(handler func(context.Context, *models.SweepRequestedEvent) error) {
	eh.onSweepRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSweepRequested:
		if eh.onSweepRequested != nil {
			var event models.SweepRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SweepRequested event: %w", err)
			}
			return eh.onSweepRequested(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
