package event

import (
	"context"
	"sync/atomic"

	"github.com/pharmaerp/receiving/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with the events it saw
type IdempotencyStats struct {
	Processed  atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// IdempotentHandler skips events whose ID the store has already seen.
// The outbox delivers at least once, so side-effecting subscribers such as
// the archive and the stream relay are wrapped with it.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	stats   *IdempotencyStats
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default TTL and enabled flag
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyStats shares one stats collector across handlers
func WithIdempotencyStats(stats *IdempotencyStats) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.stats = stats
	}
}

// NewIdempotentHandler wraps handler with duplicate detection
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		stats:   &IdempotencyStats{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle runs the wrapped handler unless the event was already processed.
// The event is recorded only after the handler succeeds, so an outbox
// retry of a failed delivery runs the handler again.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := idempotencyKey(h.handler, event)
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}

	seen, err := h.store.IsProcessed(ctx, key)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, processing anyway", append(fields, zap.Error(err))...)
	case seen:
		h.stats.Duplicates.Add(1)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.stats.Failed.Add(1)
		return err
	}

	if _, err := h.store.MarkProcessed(ctx, key, h.config.TTL); err != nil {
		h.logger.Warn("failed to record processed event", append(fields, zap.Error(err))...)
	}
	h.stats.Processed.Add(1)
	return nil
}

// Stats returns the counters for this handler
func (h *IdempotentHandler) Stats() *IdempotencyStats {
	return h.stats
}

// idempotencyKey scopes the event ID by handler so two subscribers of the
// same event do not suppress each other
func idempotencyKey(handler shared.EventHandler, event shared.DomainEvent) string {
	if named, ok := handler.(interface{ Name() string }); ok {
		return named.Name() + ":" + event.EventID().String()
	}
	return event.EventID().String()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
