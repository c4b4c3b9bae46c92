package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type namedHandler struct {
	*testHandler
	name string
}

func (h namedHandler) Name() string { return h.name }

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_Handle_NewEvent(t *testing.T) {
	inner := new(MockEventHandler)
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.created")
	key := event.EventID().String()

	store.On("IsProcessed", mock.Anything, key).Return(false, nil)
	inner.On("Handle", mock.Anything, event).Return(nil)
	store.On("MarkProcessed", mock.Anything, key, 24*time.Hour).Return(true, nil)

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertExpectations(t)
	assert.Equal(t, int64(1), h.Stats().Processed.Load())
}

func TestIdempotentHandler_Handle_DuplicateEvent(t *testing.T) {
	inner := new(MockEventHandler)
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.created")

	store.On("IsProcessed", mock.Anything, event.EventID().String()).Return(true, nil)

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(1), h.Stats().Duplicates.Load())
}

func TestIdempotentHandler_Handle_HandlerErrorIsNotRecorded(t *testing.T) {
	inner := new(MockEventHandler)
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.created")
	handlerErr := errors.New("bucket unavailable")

	store.On("IsProcessed", mock.Anything, mock.Anything).Return(false, nil)
	inner.On("Handle", mock.Anything, event).Return(handlerErr)

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	err := h.Handle(context.Background(), event)

	assert.ErrorIs(t, err, handlerErr)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(1), h.Stats().Failed.Load())
}

func TestIdempotentHandler_Handle_StoreErrorStillProcesses(t *testing.T) {
	inner := new(MockEventHandler)
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.created")

	store.On("IsProcessed", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	inner.On("Handle", mock.Anything, event).Return(nil)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	h := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, h.Handle(context.Background(), event))
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_Handle_Disabled(t *testing.T) {
	inner := new(MockEventHandler)
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.created")
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	h := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything)
}

func TestIdempotentHandler_KeyIsScopedByHandlerName(t *testing.T) {
	store := new(MockIdempotencyStore)
	event := newTestEvent("goods_receipt.status_changed")
	key := "archive:" + event.EventID().String()

	store.On("IsProcessed", mock.Anything, key).Return(false, nil)
	store.On("MarkProcessed", mock.Anything, key, time.Hour).Return(true, nil)

	h := NewIdempotentHandler(namedHandler{testHandler: newTestHandler(), name: "archive"}, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: time.Hour}))
	require.NoError(t, h.Handle(context.Background(), event))

	store.AssertExpectations(t)
}

func TestIdempotentHandler_SharedStats(t *testing.T) {
	stats := &IdempotencyStats{}
	store := new(MockIdempotencyStore)
	store.On("IsProcessed", mock.Anything, mock.Anything).Return(false, nil)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	first := NewIdempotentHandler(newTestHandler(), store, zap.NewNop(), WithIdempotencyStats(stats))
	second := NewIdempotentHandler(newTestHandler(), store, zap.NewNop(), WithIdempotencyStats(stats))

	require.NoError(t, first.Handle(context.Background(), newTestEvent("goods_receipt.created")))
	require.NoError(t, second.Handle(context.Background(), newTestEvent("goods_receipt.created")))

	assert.Equal(t, int64(2), stats.Processed.Load())
}
