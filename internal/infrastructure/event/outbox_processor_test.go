package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
	updates int
}

func newFakeOutboxRepository(entries ...*shared.OutboxEntry) *fakeOutboxRepository {
	r := &fakeOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

func (r *fakeOutboxRepository) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(limit, func(e *shared.OutboxEntry) bool { return e.Status == shared.OutboxStatusPending }), nil
}

func (r *fakeOutboxRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(limit, func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}), nil
}

func (r *fakeOutboxRepository) find(limit int, match func(*shared.OutboxEntry) bool) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if match(e) && len(out) < limit {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out
}

func (r *fakeOutboxRepository) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*shared.OutboxEntry
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok || e.MarkProcessing() != nil {
			continue
		}
		copied := *e
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *fakeOutboxRepository) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.ID] = &copied
	r.updates++
	return nil
}

func (r *fakeOutboxRepository) DeleteSentBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeOutboxRepository) get(id uuid.UUID) shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func serializedEntry(t *testing.T, s *EventSerializer) *shared.OutboxEntry {
	t.Helper()
	event := newCreatedEvent(t)
	payload, err := s.Serialize(event)
	require.NoError(t, err)
	return shared.NewOutboxEntry(event, payload)
}

func TestOutboxProcessor_DeliversPendingEntries(t *testing.T) {
	serializer := newRegisteredSerializer()
	entry := serializedEntry(t, serializer)
	repo := newFakeOutboxRepository(entry)

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("goods_receipt.created")
	bus.Subscribe(handler)

	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, entry.EventID, handler.getHandled()[0].EventID())
	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestOutboxProcessor_HandlerFailureSchedulesRetry(t *testing.T) {
	serializer := newRegisteredSerializer()
	entry := serializedEntry(t, serializer)
	repo := newFakeOutboxRepository(entry)

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("goods_receipt.created")
	handler.err = errors.New("s3 timeout")
	bus.Subscribe(handler)

	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "s3 timeout")
	require.NotNil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_RetryableEntryIsRedelivered(t *testing.T) {
	serializer := newRegisteredSerializer()
	entry := serializedEntry(t, serializer)
	entry.MarkFailed("previous attempt")
	due := time.Now().Add(-time.Second)
	entry.NextRetryAt = &due
	repo := newFakeOutboxRepository(entry)

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler()
	bus.Subscribe(handler)

	NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop()).
		processBatch(context.Background())

	assert.Len(t, handler.getHandled(), 1)
	assert.Equal(t, shared.OutboxStatusSent, repo.get(entry.ID).Status)
}

func TestOutboxProcessor_ConfiguredMaxRetriesMovesToDead(t *testing.T) {
	serializer := NewEventSerializer()
	entry := shared.NewOutboxEntry(newTestEvent("goods_receipt.unknown"), []byte(`{}`))
	repo := newFakeOutboxRepository(entry)

	cfg := DefaultOutboxProcessorConfig()
	cfg.MaxRetries = 1
	NewOutboxProcessor(repo, NewInMemoryEventBus(zap.NewNop()), serializer, cfg, zap.NewNop()).
		processBatch(context.Background())

	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusDead, stored.Status)
	assert.Contains(t, stored.LastError, "unknown event type")
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	old := newOutboxEntry("goods_receipt.created")
	old.MarkSent()
	longAgo := time.Now().Add(-30 * 24 * time.Hour)
	old.ProcessedAt = &longAgo
	fresh := newOutboxEntry("goods_receipt.created")
	fresh.MarkSent()
	repo := newFakeOutboxRepository(old, fresh)

	NewOutboxProcessor(repo, NewInMemoryEventBus(zap.NewNop()), NewEventSerializer(), DefaultOutboxProcessorConfig(), zap.NewNop()).
		cleanup(context.Background())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.NotContains(t, repo.entries, old.ID)
	assert.Contains(t, repo.entries, fresh.ID)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	serializer := newRegisteredSerializer()
	entry := serializedEntry(t, serializer)
	repo := newFakeOutboxRepository(entry)
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler()
	bus.Subscribe(handler)

	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	processor := NewOutboxProcessor(repo, bus, serializer, cfg, zap.NewNop())
	require.NoError(t, processor.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(handler.getHandled()) == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(ctx))
}

func TestOutboxProcessorConfigFrom(t *testing.T) {
	cfg := OutboxProcessorConfigFrom(config.EventConfig{
		BatchSize:      10,
		PollInterval:   250 * time.Millisecond,
		MaxRetries:     3,
		CleanupEnabled: false,
	})

	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.CleanupRetention)
}
