package receiving

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceivedQuantityCheck re-validates a receipt against fresh cumulative
// quantities. Create calls it inside the insert transaction, after the
// referenced PO lines are locked.
type ReceivedQuantityCheck func(previouslyReceived map[uuid.UUID]decimal.Decimal) error

// GoodsReceiptRepository persists goods receipt aggregates
type GoodsReceiptRepository interface {
	// FindByID returns the receipt with items. Soft-deleted receipts are NOT_FOUND.
	FindByID(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error)
	// FindAll returns one page of non-deleted receipts without items
	FindAll(ctx context.Context, filter shared.Filter) ([]GoodsReceipt, error)
	// Count returns the number of non-deleted receipts matching filter, ignoring paging
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// Create inserts header, items and pending events in one transaction.
	// check, when non-nil, runs inside that transaction before any insert.
	// An unnumbered receipt gets the next GRN number of its creation year from
	// the same transaction, so concurrent creates never share a number.
	Create(ctx context.Context, receipt *GoodsReceipt, check ReceivedQuantityCheck) error
	// UpdateStatus writes only status, lifecycle timestamps and version,
	// guarded by the receipt's current version
	UpdateStatus(ctx context.Context, receipt *GoodsReceipt) error
	// SoftDelete marks a Draft receipt deleted, guarded by version and status
	SoftDelete(ctx context.Context, receipt *GoodsReceipt) error
}

// ReceivedQuantityReader sums what non-deleted receipts already booked per PO line
type ReceivedQuantityReader interface {
	SumReceivedByOrderLines(ctx context.Context, lineIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}
