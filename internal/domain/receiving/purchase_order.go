package receiving

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is the read-only view of an upstream purchase order that
// receiving needs for reconciliation. This service never writes it.
type PurchaseOrder struct {
	ID           uuid.UUID           `json:"id"`
	OrderNumber  string              `json:"order_number"`
	SupplierName string              `json:"supplier_name"`
	Status       string              `json:"status"`
	Lines        []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine is one ordered line
type PurchaseOrderLine struct {
	ID              uuid.UUID       `json:"id"`
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity"`
	Unit            string          `json:"unit"`
}

// Line looks up a line by ID
func (po *PurchaseOrder) Line(id uuid.UUID) (PurchaseOrderLine, bool) {
	for _, line := range po.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return PurchaseOrderLine{}, false
}

// OrderedQuantities maps each line to its ordered quantity
func (po *PurchaseOrder) OrderedQuantities() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(po.Lines))
	for _, line := range po.Lines {
		out[line.ID] = line.OrderedQuantity
	}
	return out
}

// MissingLines returns the requested line IDs that are not on the order
func (po *PurchaseOrder) MissingLines(ids []uuid.UUID) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := po.Line(id); !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// AcceptsReceipts is false for orders that were cancelled or never released
func (po *PurchaseOrder) AcceptsReceipts() bool {
	switch strings.ToUpper(strings.TrimSpace(po.Status)) {
	case "CANCELLED", "DRAFT":
		return false
	}
	return true
}

// PurchaseOrderSummary is the decoration attached to a receipt on reads
type PurchaseOrderSummary struct {
	ID           uuid.UUID `json:"id"`
	OrderNumber  string    `json:"order_number"`
	SupplierName string    `json:"supplier_name"`
	Status       string    `json:"status"`
}

// Summary strips the lines
func (po *PurchaseOrder) Summary() *PurchaseOrderSummary {
	return &PurchaseOrderSummary{
		ID:           po.ID,
		OrderNumber:  po.OrderNumber,
		SupplierName: po.SupplierName,
		Status:       po.Status,
	}
}

// PurchaseOrderReader fetches purchase orders from the procurement context.
// Implementations return a NOT_FOUND DomainError when the order does not exist.
type PurchaseOrderReader interface {
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
}
