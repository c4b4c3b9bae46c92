package collaborator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) Call(ctx context.Context, queue, pattern string, payload, out any) error {
	args := m.Called(ctx, queue, pattern, payload, out)
	if fill, ok := args.Get(1).(func(any)); ok && fill != nil {
		fill(out)
	}
	return args.Error(0)
}

func TestPurchaseOrderClient_GetPurchaseOrder(t *testing.T) {
	poID := uuid.New()
	lineID := uuid.New()

	t.Run("decodes order and lines", func(t *testing.T) {
		caller := new(MockCaller)
		caller.On("Call", mock.Anything, "rpc:procurement", PatternGetPurchaseOrder,
			getPurchaseOrderRequest{ID: poID}, mock.Anything).
			Return(nil, func(out any) {
				*out.(*receiving.PurchaseOrder) = receiving.PurchaseOrder{
					ID:           poID,
					OrderNumber:  "PO-2026-00017",
					SupplierName: "Acme Pharma",
					Status:       "CONFIRMED",
					Lines:        []receiving.PurchaseOrderLine{{ID: lineID, OrderedQuantity: decimal.NewFromInt(100)}},
				}
			})

		po, err := NewPurchaseOrderClient(caller, "rpc:procurement").GetPurchaseOrder(context.Background(), poID)
		require.NoError(t, err)
		assert.Equal(t, "PO-2026-00017", po.OrderNumber)
		require.Len(t, po.Lines, 1)
		assert.Equal(t, lineID, po.Lines[0].ID)
		caller.AssertExpectations(t)
	})

	t.Run("remote not found passes through", func(t *testing.T) {
		caller := new(MockCaller)
		caller.On("Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(shared.NewNotFoundError("purchase order", poID), nil)

		_, err := NewPurchaseOrderClient(caller, "rpc:procurement").GetPurchaseOrder(context.Background(), poID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("timeout is a plain error", func(t *testing.T) {
		caller := new(MockCaller)
		caller.On("Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(messaging.ErrTimeout, nil)

		_, err := NewPurchaseOrderClient(caller, "rpc:procurement").GetPurchaseOrder(context.Background(), poID)
		require.Error(t, err)
		assert.ErrorIs(t, err, messaging.ErrTimeout)
		assert.Empty(t, shared.ErrorCode(err))
	})
}
