package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
)

// LogPublisher writes events to the application log. Used when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs every event at info level
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...domain.Event) error {
	for _, e := range events {
		p.logger.Info("Domain event",
			zap.String("event_id", e.ID.String()),
			zap.String("type", string(e.Type)),
			zap.String("key", e.Key),
			zap.Time("occurred_at", e.OccurredAt),
			zap.Any("payload", e.Payload),
		)
	}
	return nil
}
