package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// QueueProducer publishes built events for deferred persistence.
type QueueProducer interface {
	SendMessage(ctx context.Context, key string, value any) error
}

// Service persists captured events either inline or through the queue,
// selected by deployment configuration. Consumers of aggregation reads must
// tolerate the queued path's eventual visibility.
type Service struct {
	store        Store
	producer     QueueProducer
	queueEnabled bool
	logger       *zap.Logger
}

func NewService(store Store, producer QueueProducer, queueEnabled bool, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		producer:     producer,
		queueEnabled: queueEnabled && producer != nil,
		logger:       logger,
	}
}

// Record hands the event to the configured persistence path. Events of one
// visitor share a partition key so their relative order survives queueing.
func (s *Service) Record(ctx context.Context, ev *CapturedEvent) error {
	if err := ev.Validate(); err != nil {
		s.logger.Warn("Refusing to record invalid event",
			zap.Error(err),
			zap.String("path", ev.Path),
		)
		return fmt.Errorf("invalid captured event: %w", err)
	}

	if s.queueEnabled {
		if err := s.producer.SendMessage(ctx, ev.VisitorID, ev); err != nil {
			return fmt.Errorf("failed to enqueue captured event: %w", err)
		}
		s.logger.Debug("Captured event enqueued",
			zap.String("path", ev.Path),
			zap.String("visitor_id", ev.VisitorID),
		)
		return nil
	}

	if err := s.store.Insert(ctx, ev); err != nil {
		return fmt.Errorf("failed to record captured event: %w", err)
	}

	return nil
}

// CreateMessageHandler builds the queue consumer callback that persists
// events produced by Record.
func (s *Service) CreateMessageHandler() func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var ev CapturedEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			s.logger.Error("Failed to unmarshal queued event",
				zap.Error(err),
				zap.String("key", string(key)),
			)
			return err
		}

		if err := s.store.Insert(ctx, &ev); err != nil {
			s.logger.Error("Failed to persist queued event",
				zap.Error(err),
				zap.String("visitor_id", ev.VisitorID),
				zap.String("path", ev.Path),
			)
			return err
		}

		return nil
	}
}

// Prune deletes events older than the retention window.
func (s *Service) Prune(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune events", zap.Error(err), zap.Int("days", days))
		return 0, err
	}

	return deleted, nil
}
