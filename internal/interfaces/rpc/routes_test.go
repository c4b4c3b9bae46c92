package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockGoodsReceiptService struct {
	mock.Mock
}

func (m *MockGoodsReceiptService) Create(ctx context.Context, input receiving.CreateGoodsReceiptInput) (*receiving.GoodsReceiptResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.GoodsReceiptResponse), args.Error(1)
}

func (m *MockGoodsReceiptService) Transition(ctx context.Context, input receiving.TransitionGoodsReceiptInput) (*receiving.GoodsReceiptSummary, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.GoodsReceiptSummary), args.Error(1)
}

func (m *MockGoodsReceiptService) GetByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceiptResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.GoodsReceiptResponse), args.Error(1)
}

func (m *MockGoodsReceiptService) List(ctx context.Context, input receiving.ListGoodsReceiptsInput) (*receiving.ListGoodsReceiptsResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.ListGoodsReceiptsResult), args.Error(1)
}

func (m *MockGoodsReceiptService) Delete(ctx context.Context, id uuid.UUID) (*receiving.DeleteGoodsReceiptResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.DeleteGoodsReceiptResult), args.Error(1)
}

func raw(t *testing.T, v any) jsoniter.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestNewGoodsReceiptRoutes_RegistersEveryPattern(t *testing.T) {
	r := NewGoodsReceiptRoutes(new(MockGoodsReceiptService))
	assert.ElementsMatch(t, []string{PatternCreate, PatternTransition, PatternGet, PatternList, PatternDelete}, r.Patterns())
}

func TestRouter_Create(t *testing.T) {
	ctx := context.Background()
	poID, lineID := uuid.New(), uuid.New()

	t.Run("decodes and forwards the input", func(t *testing.T) {
		svc := new(MockGoodsReceiptService)
		r := NewGoodsReceiptRoutes(svc)

		resp := &receiving.GoodsReceiptResponse{GoodsReceiptSummary: receiving.GoodsReceiptSummary{GRNNumber: "GRN-2026-00001", Status: "Draft"}}
		svc.On("Create", ctx, mock.MatchedBy(func(in receiving.CreateGoodsReceiptInput) bool {
			return in.PurchaseOrderID == poID &&
				len(in.Items) == 1 &&
				in.Items[0].ReceivedQuantity.Equal(decimal.RequireFromString("12.5")) &&
				*in.Items[0].BatchNumber == "B-1"
		})).Return(resp, nil)

		result, err := r.Dispatch(ctx, PatternCreate, jsoniter.RawMessage(`{
			"purchase_order_id": "`+poID.String()+`",
			"received_date": "2026-05-04T08:00:00Z",
			"items": [{
				"purchase_order_item_id": "`+lineID.String()+`",
				"received_quantity": "12.5",
				"accepted_quantity": "12",
				"rejected_quantity": "0.5",
				"batch_number": "B-1"
			}]
		}`))
		require.NoError(t, err)
		assert.Same(t, resp, result)
		svc.AssertExpectations(t)
	})

	t.Run("missing items never reach the service", func(t *testing.T) {
		svc := new(MockGoodsReceiptService)
		r := NewGoodsReceiptRoutes(svc)

		_, err := r.Dispatch(ctx, PatternCreate, raw(t, map[string]any{
			"purchase_order_id": poID,
			"received_date":     time.Now(),
		}))
		assert.True(t, errors.Is(err, shared.ErrValidation))
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("malformed json is a validation error", func(t *testing.T) {
		r := NewGoodsReceiptRoutes(new(MockGoodsReceiptService))
		_, err := r.Dispatch(ctx, PatternCreate, jsoniter.RawMessage(`{"purchase_order_id": "nope"}`))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestRouter_Transition(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	svc := new(MockGoodsReceiptService)
	r := NewGoodsReceiptRoutes(svc)

	svc.On("Transition", ctx, receiving.TransitionGoodsReceiptInput{ID: id, Status: "QC Approved"}).
		Return(nil, shared.NewDomainError(shared.CodeInvalidStateTransition, "cannot transition from Draft to QC Approved"))

	_, err := r.Dispatch(ctx, PatternTransition, raw(t, map[string]any{"id": id, "status": "QC Approved"}))
	assert.True(t, errors.Is(err, shared.ErrInvalidStateTransition))

	_, err = r.Dispatch(ctx, PatternTransition, raw(t, map[string]any{"id": id}))
	assert.True(t, errors.Is(err, shared.ErrValidation))
	svc.AssertNumberOfCalls(t, "Transition", 1)
}

func TestRouter_GetListDelete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	svc := new(MockGoodsReceiptService)
	r := NewGoodsReceiptRoutes(svc)

	svc.On("GetByID", ctx, id).Return(&receiving.GoodsReceiptResponse{}, nil)
	svc.On("Delete", ctx, id).Return(&receiving.DeleteGoodsReceiptResult{ID: id, Deleted: true}, nil)
	svc.On("List", ctx, receiving.ListGoodsReceiptsInput{Status: "Draft", Page: 2, Limit: 10}).
		Return(&receiving.ListGoodsReceiptsResult{Docs: []receiving.GoodsReceiptSummary{}, Page: 2, Limit: 10}, nil)

	_, err := r.Dispatch(ctx, PatternGet, raw(t, map[string]any{"id": id}))
	require.NoError(t, err)

	result, err := r.Dispatch(ctx, PatternDelete, raw(t, map[string]any{"id": id}))
	require.NoError(t, err)
	assert.True(t, result.(*receiving.DeleteGoodsReceiptResult).Deleted)

	result, err = r.Dispatch(ctx, PatternList, raw(t, map[string]any{"status": "Draft", "page": 2, "limit": 10}))
	require.NoError(t, err)
	assert.Equal(t, 2, result.(*receiving.ListGoodsReceiptsResult).Page)

	_, err = r.Dispatch(ctx, PatternList, raw(t, map[string]any{"limit": 1000}))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = r.Dispatch(ctx, PatternGet, nil)
	assert.True(t, errors.Is(err, shared.ErrValidation), "empty payload lacks id")

	svc.AssertExpectations(t)
}

func TestRouter_UnknownPattern(t *testing.T) {
	r := NewGoodsReceiptRoutes(new(MockGoodsReceiptService))
	_, err := r.Dispatch(context.Background(), "goods_receipt.approve", nil)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

// the envelope keeps the domain code and message unchanged
func TestRouter_ThroughServerEnvelope(t *testing.T) {
	id := uuid.New()
	svc := new(MockGoodsReceiptService)
	svc.On("GetByID", mock.Anything, id).Return(nil, shared.NewNotFoundError("goods receipt", id.String()))

	server := messaging.NewServer(nil, messaging.ServerConfig{Queue: "receiving:rpc"}, NewGoodsReceiptRoutes(svc), zap.NewNop())

	req, err := messaging.EncodeRequest(&messaging.Request{
		ID:      "req-1",
		Pattern: PatternGet,
		ReplyTo: "receiving:reply:req-1",
		Data:    raw(t, map[string]any{"id": id}),
	})
	require.NoError(t, err)

	_, reply, ok := server.HandleMessage(context.Background(), req)
	require.True(t, ok)

	resp, err := messaging.DecodeResponse(reply)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, messaging.KindNotFound, resp.Error.Kind)
	assert.Equal(t, shared.CodeNotFound, resp.Error.Code)
	assert.True(t, errors.Is(resp.Error.DomainError(), shared.ErrNotFound))
}
