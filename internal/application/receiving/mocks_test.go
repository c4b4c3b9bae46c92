package receiving

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockGoodsReceiptRepository is a mock implementation of GoodsReceiptRepository
type MockGoodsReceiptRepository struct {
	mock.Mock
}

func (m *MockGoodsReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceipt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.GoodsReceipt), args.Error(1)
}

func (m *MockGoodsReceiptRepository) FindAll(ctx context.Context, filter shared.Filter) ([]receiving.GoodsReceipt, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]receiving.GoodsReceipt), args.Error(1)
}

func (m *MockGoodsReceiptRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGoodsReceiptRepository) Create(ctx context.Context, receipt *receiving.GoodsReceipt, check receiving.ReceivedQuantityCheck) error {
	args := m.Called(ctx, receipt, check)
	return args.Error(0)
}

func (m *MockGoodsReceiptRepository) UpdateStatus(ctx context.Context, receipt *receiving.GoodsReceipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockGoodsReceiptRepository) SoftDelete(ctx context.Context, receipt *receiving.GoodsReceipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

// MockReceivedQuantityReader is a mock implementation of ReceivedQuantityReader
type MockReceivedQuantityReader struct {
	mock.Mock
}

func (m *MockReceivedQuantityReader) SumReceivedByOrderLines(ctx context.Context, lineIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

// MockPurchaseOrderReader is a mock implementation of PurchaseOrderReader
type MockPurchaseOrderReader struct {
	mock.Mock
}

func (m *MockPurchaseOrderReader) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*receiving.PurchaseOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receiving.PurchaseOrder), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func qty(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestPurchaseOrder(lines ...uuid.UUID) *receiving.PurchaseOrder {
	po := &receiving.PurchaseOrder{
		ID:           uuid.New(),
		OrderNumber:  "PO-2026-00017",
		SupplierName: "Acme Pharma Supplies",
		Status:       "CONFIRMED",
	}
	for i, id := range lines {
		po.Lines = append(po.Lines, receiving.PurchaseOrderLine{
			ID:              id,
			ProductCode:     fmt.Sprintf("API-%03d", i+1),
			ProductName:     "Paracetamol API",
			OrderedQuantity: qty("100"),
			Unit:            "kg",
		})
	}
	return po
}

func newStoredReceipt(status receiving.GoodsReceiptStatus) *receiving.GoodsReceipt {
	receipt, err := receiving.NewGoodsReceipt(uuid.New(), time.Now(), "", []receiving.ItemSpec{{
		PurchaseOrderItemID: uuid.New(),
		ReceivedQuantity:    qty("10"),
		AcceptedQuantity:    qty("9"),
		RejectedQuantity:    qty("1"),
	}})
	if err != nil {
		panic(err)
	}
	if err := receipt.AssignNumber("GRN-2026-00005"); err != nil {
		panic(err)
	}
	receipt.ClearDomainEvents()
	receipt.Status = status
	return receipt
}
