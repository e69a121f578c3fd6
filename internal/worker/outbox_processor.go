package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/port"
)

// OutboxStore is the storage side of the outbox, implemented by
// storage.Outbox.
type OutboxStore interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	ClaimBatch(ctx context.Context, limit int) ([]port.Message, error)
	Delete(ctx context.Context, id string) error
}

// OutboxProcessor relays committed events from the outbox table to the
// broker. Delivery is at least once: a message is deleted only after the
// broker accepted it.
type OutboxProcessor struct {
	store     OutboxStore
	publisher port.MessagePublisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewOutboxProcessor(store OutboxStore, publisher port.MessagePublisher, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.Named("outbox"),
	}
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("outbox processor started",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch in claim order and returns how many
// messages were sent. It stops at the first publish failure; that message
// and the ones after it stay in the outbox for the next round.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	err := p.store.Do(ctx, func(ctx context.Context) error {
		msgs, err := p.store.ClaimBatch(ctx, p.batchSize)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if err := p.publisher.Publish(ctx, msg); err != nil {
				p.logger.Warn("publish failed, will retry",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err),
				)
				return nil
			}
			if err := p.store.Delete(ctx, msg.ID); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if sent > 0 {
		p.logger.Debug("outbox batch relayed", zap.Int("count", sent))
	}
	return sent, nil
}
