package receiving

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/shopspring/decimal"
)

// ==================== Goods Receipt DTOs ====================

// CreateGoodsReceiptInput is the payload of goods_receipt.create
type CreateGoodsReceiptInput struct {
	PurchaseOrderID uuid.UUID                     `json:"purchase_order_id" binding:"required"`
	ReceivedDate    time.Time                     `json:"received_date" binding:"required"`
	Remarks         string                        `json:"remarks" binding:"max=2000"`
	Items           []CreateGoodsReceiptItemInput `json:"items" binding:"required,min=1,dive"`
}

// CreateGoodsReceiptItemInput is one received line. Quantities are checked by
// reconciliation, not by tags, so every broken rule is reported at once.
type CreateGoodsReceiptItemInput struct {
	PurchaseOrderItemID uuid.UUID       `json:"purchase_order_item_id" binding:"required"`
	ReceivedQuantity    decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity    decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity    decimal.Decimal `json:"rejected_quantity"`
	BatchNumber         *string         `json:"batch_number" binding:"omitempty,max=100"`
	ExpiryDate          *time.Time      `json:"expiry_date"`
}

// TransitionGoodsReceiptInput is the payload of goods_receipt.transition
type TransitionGoodsReceiptInput struct {
	ID     uuid.UUID `json:"id" binding:"required"`
	Status string    `json:"status" binding:"required"`
}

// GoodsReceiptIDInput addresses a single receipt (get, delete)
type GoodsReceiptIDInput struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// ListGoodsReceiptsInput is the payload of goods_receipt.list. It doubles as
// the HTTP query binding.
type ListGoodsReceiptsInput struct {
	Search          string     `json:"search" form:"search" binding:"max=100"`
	SearchFields    []string   `json:"search_fields" form:"search_fields" binding:"omitempty,dive,oneof=grn_number remarks"`
	Status          string     `json:"status" form:"status"`
	PurchaseOrderID string     `json:"purchase_order_id" form:"purchase_order_id" binding:"omitempty,uuid"`
	ReceivedFrom    *time.Time `json:"received_from" form:"received_from" time_format:"2006-01-02"`
	ReceivedTo      *time.Time `json:"received_to" form:"received_to" time_format:"2006-01-02"`
	SortBy          string     `json:"sort_by" form:"sort_by" binding:"omitempty,oneof=grn_number received_date status created_at updated_at"`
	SortOrder       string     `json:"sort_order" form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
	Page            int        `json:"page" form:"page" binding:"omitempty,min=1"`
	Limit           int        `json:"limit" form:"limit" binding:"omitempty,min=1,max=100"`
}

// GoodsReceiptItemResponse is one line of a receipt
type GoodsReceiptItemResponse struct {
	ID                  uuid.UUID       `json:"id"`
	PurchaseOrderItemID uuid.UUID       `json:"purchase_order_item_id"`
	ReceivedQuantity    decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity    decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity    decimal.Decimal `json:"rejected_quantity"`
	BatchNumber         *string         `json:"batch_number,omitempty"`
	ExpiryDate          *time.Time      `json:"expiry_date,omitempty"`
}

// GoodsReceiptSummary is the header without items; returned by transitions and lists
type GoodsReceiptSummary struct {
	ID              uuid.UUID  `json:"id"`
	GRNNumber       string     `json:"grn_number"`
	PurchaseOrderID uuid.UUID  `json:"purchase_order_id"`
	Status          string     `json:"status"`
	ReceivedDate    time.Time  `json:"received_date"`
	Remarks         string     `json:"remarks,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

// GoodsReceiptResponse is the full receipt with items and, when available,
// the purchase order it was received against
type GoodsReceiptResponse struct {
	GoodsReceiptSummary
	TotalReceived decimal.Decimal                 `json:"total_received"`
	TotalRejected decimal.Decimal                 `json:"total_rejected"`
	Items         []GoodsReceiptItemResponse      `json:"items"`
	PurchaseOrder *receiving.PurchaseOrderSummary `json:"purchase_order,omitempty"`
}

// ListGoodsReceiptsResult is one page of receipts
type ListGoodsReceiptsResult struct {
	Docs  []GoodsReceiptSummary `json:"docs"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int64                 `json:"total"`
}

// DeleteGoodsReceiptResult acknowledges a soft delete
type DeleteGoodsReceiptResult struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

// ToItemSpecs converts the input lines for the domain
func (in CreateGoodsReceiptInput) ToItemSpecs() []receiving.ItemSpec {
	specs := make([]receiving.ItemSpec, len(in.Items))
	for i, item := range in.Items {
		specs[i] = receiving.ItemSpec{
			PurchaseOrderItemID: item.PurchaseOrderItemID,
			ReceivedQuantity:    item.ReceivedQuantity,
			AcceptedQuantity:    item.AcceptedQuantity,
			RejectedQuantity:    item.RejectedQuantity,
			BatchNumber:         item.BatchNumber,
			ExpiryDate:          item.ExpiryDate,
		}
	}
	return specs
}

// ToGoodsReceiptSummary converts the header
func ToGoodsReceiptSummary(g *receiving.GoodsReceipt) GoodsReceiptSummary {
	return GoodsReceiptSummary{
		ID:              g.ID,
		GRNNumber:       g.GRNNumber,
		PurchaseOrderID: g.PurchaseOrderID,
		Status:          g.Status.String(),
		ReceivedDate:    g.ReceivedDate,
		Remarks:         g.Remarks,
		VerifiedAt:      g.VerifiedAt,
		CompletedAt:     g.CompletedAt,
		CancelledAt:     g.CancelledAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		Version:         g.Version,
	}
}

// ToGoodsReceiptSummaries converts a page of headers
func ToGoodsReceiptSummaries(receipts []receiving.GoodsReceipt) []GoodsReceiptSummary {
	out := make([]GoodsReceiptSummary, len(receipts))
	for i := range receipts {
		out[i] = ToGoodsReceiptSummary(&receipts[i])
	}
	return out
}

// ToGoodsReceiptResponse converts the whole aggregate
func ToGoodsReceiptResponse(g *receiving.GoodsReceipt) GoodsReceiptResponse {
	items := make([]GoodsReceiptItemResponse, len(g.Items))
	for i, item := range g.Items {
		items[i] = GoodsReceiptItemResponse{
			ID:                  item.ID,
			PurchaseOrderItemID: item.PurchaseOrderItemID,
			ReceivedQuantity:    item.ReceivedQuantity,
			AcceptedQuantity:    item.AcceptedQuantity,
			RejectedQuantity:    item.RejectedQuantity,
			BatchNumber:         item.BatchNumber,
			ExpiryDate:          item.ExpiryDate,
		}
	}
	return GoodsReceiptResponse{
		GoodsReceiptSummary: ToGoodsReceiptSummary(g),
		TotalReceived:       g.TotalReceived(),
		TotalRejected:       g.TotalRejected(),
		Items:               items,
	}
}
