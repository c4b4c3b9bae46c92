package receiving

import (
	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeGoodsReceiptCreated       = "goods_receipt.created"
	EventTypeGoodsReceiptStatusChanged = "goods_receipt.status_changed"
)

// GoodsReceiptCreatedEvent is raised when a receipt and its items are first persisted.
// QC sampling subscribes to it.
type GoodsReceiptCreatedEvent struct {
	shared.BaseDomainEvent
	GoodsReceiptID  uuid.UUID          `json:"goods_receipt_id"`
	GRNNumber       string             `json:"grn_number"`
	PurchaseOrderID uuid.UUID          `json:"purchase_order_id"`
	Status          GoodsReceiptStatus `json:"status"`
	ItemCount       int                `json:"item_count"`
	TotalReceived   decimal.Decimal    `json:"total_received"`
	TotalRejected   decimal.Decimal    `json:"total_rejected"`
}

// NewGoodsReceiptCreatedEvent creates a new GoodsReceiptCreatedEvent
func NewGoodsReceiptCreatedEvent(receipt *GoodsReceipt) *GoodsReceiptCreatedEvent {
	return &GoodsReceiptCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGoodsReceiptCreated, AggregateTypeGoodsReceipt, receipt.ID),
		GoodsReceiptID:  receipt.ID,
		GRNNumber:       receipt.GRNNumber,
		PurchaseOrderID: receipt.PurchaseOrderID,
		Status:          receipt.Status,
		ItemCount:       len(receipt.Items),
		TotalReceived:   receipt.TotalReceived(),
		TotalRejected:   receipt.TotalRejected(),
	}
}

// EventType returns the event type name
func (e *GoodsReceiptCreatedEvent) EventType() string {
	return EventTypeGoodsReceiptCreated
}

// GoodsReceiptStatusChangedEvent is raised on every successful transition
type GoodsReceiptStatusChangedEvent struct {
	shared.BaseDomainEvent
	GoodsReceiptID  uuid.UUID          `json:"goods_receipt_id"`
	GRNNumber       string             `json:"grn_number"`
	PurchaseOrderID uuid.UUID          `json:"purchase_order_id"`
	FromStatus      GoodsReceiptStatus `json:"from_status"`
	ToStatus        GoodsReceiptStatus `json:"to_status"`
}

// NewGoodsReceiptStatusChangedEvent creates a new GoodsReceiptStatusChangedEvent
func NewGoodsReceiptStatusChangedEvent(receipt *GoodsReceipt, from GoodsReceiptStatus) *GoodsReceiptStatusChangedEvent {
	return &GoodsReceiptStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGoodsReceiptStatusChanged, AggregateTypeGoodsReceipt, receipt.ID),
		GoodsReceiptID:  receipt.ID,
		GRNNumber:       receipt.GRNNumber,
		PurchaseOrderID: receipt.PurchaseOrderID,
		FromStatus:      from,
		ToStatus:        receipt.Status,
	}
}

// EventType returns the event type name
func (e *GoodsReceiptStatusChangedEvent) EventType() string {
	return EventTypeGoodsReceiptStatusChanged
}
