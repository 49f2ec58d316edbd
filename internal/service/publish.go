package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/domain"
)

// publishEvents delivers events after their transaction committed. Delivery is
// best effort: a failure is logged and never undoes the command.
func publishEvents(ctx context.Context, pub EventPublisher, logger *zap.Logger, events ...domain.Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish events",
			zap.String("type", string(events[0].Type)),
			zap.String("key", events[0].Key),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
