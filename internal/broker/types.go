package broker

import (
	"context"

	"courier/pkg/models"
)

// Producer emits finished pipeline output. Publish guarantees that messages
// sharing a group id reach the consumer in publish order.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.ServiceMessage) error
	PublishStatus(ctx context.Context, topic string, ev models.StatusEvent) error
	Close() error
}
