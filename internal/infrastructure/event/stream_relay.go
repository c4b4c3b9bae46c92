package event

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream downstream services (QC, inventory) read
const DefaultStream = "receiving.events"

// StreamAppender is the part of the Redis client the relay needs
type StreamAppender interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamRelay forwards delivered domain events to a Redis stream so other
// services can consume them without reading this service's outbox
type StreamRelay struct {
	client     StreamAppender
	serializer *EventSerializer
	stream     string
	maxLen     int64
	eventTypes []string
	logger     *zap.Logger
}

// NewStreamRelay creates a relay for eventTypes; none means every event.
// maxLen caps the stream approximately; zero leaves it unbounded.
func NewStreamRelay(client StreamAppender, serializer *EventSerializer, stream string, maxLen int64, logger *zap.Logger, eventTypes ...string) *StreamRelay {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamRelay{
		client:     client,
		serializer: serializer,
		stream:     stream,
		maxLen:     maxLen,
		eventTypes: eventTypes,
		logger:     logger,
	}
}

// Name identifies the relay in idempotency keys
func (r *StreamRelay) Name() string {
	return "stream:" + r.stream
}

// EventTypes returns the event types this relay forwards
func (r *StreamRelay) EventTypes() []string {
	return r.eventTypes
}

// Handle appends the event to the stream
func (r *StreamRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := r.serializer.Serialize(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"event_id":       event.EventID().String(),
			"event_type":     event.EventType(),
			"aggregate_id":   event.AggregateID().String(),
			"aggregate_type": event.AggregateType(),
			"occurred_at":    event.OccurredAt().UTC().Format(time.RFC3339Nano),
			"payload":        string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}

	r.logger.Debug("event relayed to stream",
		zap.String("stream", r.stream),
		zap.String("stream_id", id),
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*StreamRelay)(nil)
