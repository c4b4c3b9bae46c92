// Package receiving models goods receipts (GRNs) recorded against purchase orders
// and the quantity reconciliation that gates them.
package receiving

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeGoodsReceipt is the aggregate type recorded on events and outbox rows
const AggregateTypeGoodsReceipt = "GoodsReceipt"

// ItemSpec describes one line of a prospective receipt before it is persisted
type ItemSpec struct {
	PurchaseOrderItemID uuid.UUID
	ReceivedQuantity    decimal.Decimal
	AcceptedQuantity    decimal.Decimal
	RejectedQuantity    decimal.Decimal
	BatchNumber         *string
	ExpiryDate          *time.Time
}

// GoodsReceiptItem is one received line. It belongs to exactly one receipt.
type GoodsReceiptItem struct {
	ID                  uuid.UUID
	GoodsReceiptID      uuid.UUID
	PurchaseOrderItemID uuid.UUID
	ReceivedQuantity    decimal.Decimal
	AcceptedQuantity    decimal.Decimal
	RejectedQuantity    decimal.Decimal
	BatchNumber         *string
	ExpiryDate          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GoodsReceipt is the aggregate root: the header of one physical delivery plus its items
type GoodsReceipt struct {
	shared.BaseAggregateRoot
	GRNNumber       string
	PurchaseOrderID uuid.UUID
	Status          GoodsReceiptStatus
	ReceivedDate    time.Time
	Remarks         string
	VerifiedAt      *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	DeletedAt       *time.Time
	Items           []GoodsReceiptItem
}

// NewGoodsReceipt assembles an unnumbered Draft receipt from validated item specs.
// The receipt is recorded, and raises GoodsReceiptCreatedEvent, once AssignNumber
// gives it a GRN number.
func NewGoodsReceipt(purchaseOrderID uuid.UUID, receivedDate time.Time, remarks string, specs []ItemSpec) (*GoodsReceipt, error) {
	if purchaseOrderID == uuid.Nil {
		return nil, shared.NewValidationError("purchase order reference is required")
	}
	if receivedDate.IsZero() {
		return nil, shared.NewValidationError("received date is required")
	}
	if len(specs) == 0 {
		return nil, shared.NewValidationError("a goods receipt must contain at least one item")
	}
	if res := ValidateItemShapes(specs); !res.IsValid() {
		return nil, res.Err()
	}

	receipt := &GoodsReceipt{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PurchaseOrderID:   purchaseOrderID,
		Status:            StatusDraft,
		ReceivedDate:      receivedDate,
		Remarks:           strings.TrimSpace(remarks),
	}

	receipt.Items = make([]GoodsReceiptItem, len(specs))
	for i, spec := range specs {
		receipt.Items[i] = GoodsReceiptItem{
			ID:                  uuid.New(),
			GoodsReceiptID:      receipt.ID,
			PurchaseOrderItemID: spec.PurchaseOrderItemID,
			ReceivedQuantity:    spec.ReceivedQuantity,
			AcceptedQuantity:    spec.AcceptedQuantity,
			RejectedQuantity:    spec.RejectedQuantity,
			BatchNumber:         normalizeBatch(spec.BatchNumber),
			ExpiryDate:          spec.ExpiryDate,
			CreatedAt:           receipt.CreatedAt,
			UpdatedAt:           receipt.CreatedAt,
		}
	}

	return receipt, nil
}

// FormatGRNNumber renders the n-th receipt of year as GRN-YYYY-NNNNN.
// Past 99999 the sequence simply widens.
func FormatGRNNumber(year int, n int64) string {
	return fmt.Sprintf("GRN-%04d-%05d", year, n)
}

// AssignNumber gives the receipt its GRN number and raises GoodsReceiptCreatedEvent.
// A receipt is numbered exactly once.
func (g *GoodsReceipt) AssignNumber(grnNumber string) error {
	grnNumber = strings.TrimSpace(grnNumber)
	if grnNumber == "" {
		return shared.NewValidationError("GRN number cannot be empty")
	}
	if g.GRNNumber != "" {
		return shared.NewConflictError("goods receipt is already numbered %s", g.GRNNumber)
	}
	g.GRNNumber = grnNumber
	g.AddDomainEvent(NewGoodsReceiptCreatedEvent(g))
	return nil
}

func normalizeBatch(batch *string) *string {
	if batch == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*batch)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Transition moves the receipt to target, stamping the matching timestamp.
// Illegal moves leave the receipt untouched.
func (g *GoodsReceipt) Transition(target GoodsReceiptStatus, at time.Time) error {
	if !target.IsValid() {
		return shared.NewValidationError("unknown goods receipt status %q", target)
	}
	if !g.Status.CanTransitionTo(target) {
		return newTransitionError(g.Status, target)
	}

	from := g.Status
	g.Status = target
	switch target {
	case StatusQCApproved, StatusQCRejected:
		g.VerifiedAt = &at
	case StatusCompleted:
		g.CompletedAt = &at
	case StatusCancelled:
		g.CancelledAt = &at
	}
	g.Touch(at)

	g.AddDomainEvent(NewGoodsReceiptStatusChangedEvent(g, from))
	return nil
}

// CanDelete reports whether the receipt may still be soft-deleted
func (g *GoodsReceipt) CanDelete() bool {
	return g.Status == StatusDraft && g.DeletedAt == nil
}

// MarkDeleted soft-deletes a Draft receipt
func (g *GoodsReceipt) MarkDeleted(at time.Time) error {
	if g.DeletedAt != nil {
		return shared.NewNotFoundError("goods receipt", g.ID)
	}
	if g.Status != StatusDraft {
		return shared.NewConflictError("goods receipt %s cannot be deleted in %s status", g.GRNNumber, g.Status).
			WithDetail("status", g.Status.String())
	}
	g.DeletedAt = &at
	g.Touch(at)
	return nil
}

// TotalReceived sums received quantity across all items
func (g *GoodsReceipt) TotalReceived() decimal.Decimal {
	total := decimal.Zero
	for _, item := range g.Items {
		total = total.Add(item.ReceivedQuantity)
	}
	return total
}

// TotalRejected sums rejected quantity across all items
func (g *GoodsReceipt) TotalRejected() decimal.Decimal {
	total := decimal.Zero
	for _, item := range g.Items {
		total = total.Add(item.RejectedQuantity)
	}
	return total
}

// ItemSpecs returns the items as specs, used when re-running reconciliation
func (g *GoodsReceipt) ItemSpecs() []ItemSpec {
	specs := make([]ItemSpec, len(g.Items))
	for i, item := range g.Items {
		specs[i] = ItemSpec{
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

// PurchaseOrderItemIDs returns the distinct PO lines referenced by the receipt
func (g *GoodsReceipt) PurchaseOrderItemIDs() []uuid.UUID {
	return LineIDs(g.ItemSpecs())
}

func (g *GoodsReceipt) String() string {
	return fmt.Sprintf("GoodsReceipt(%s, %s)", g.GRNNumber, g.Status)
}
