package worker

import (
	"context"

	"github.com/Fallstop/super-tracker-nz/internal/broker"
	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
)

// Triggerer accepts requests for an immediate pass.
type Triggerer interface {
	Trigger() bool
}

// TriggerWorker turns sweep request messages into scheduler triggers.
type TriggerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewTriggerWorker creates a new trigger worker
func NewTriggerWorker(consumer *broker.Consumer, scheduler Triggerer) *TriggerWorker {
	w := &TriggerWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnSweepRequested(func(ctx context.Context, event *models.SweepRequestedEvent) error {
		queued := scheduler.Trigger()
		w.logger.Info("Sweep requested",
			zap.String("event_id", event.EventID),
			zap.String("requested_by", event.RequestedBy),
			zap.Bool("queued", queued))
		return nil
	})

	return w
}

// Start starts the worker
func (w *TriggerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting trigger worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TriggerWorker) Stop() error {
	w.logger.Info("Stopping trigger worker")
	return w.consumer.Close()
}
