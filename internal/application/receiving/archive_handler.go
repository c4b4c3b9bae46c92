package receiving

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReceiptArchiver stores a receipt snapshot and returns where it went
type ReceiptArchiver interface {
	ArchiveReceipt(ctx context.Context, grnNumber string, at time.Time, body []byte) (string, error)
}

// ReceiptFinder loads a receipt with its items
type ReceiptFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceipt, error)
}

// ArchivedReceipt is the document written for a completed receipt
type ArchivedReceipt struct {
	GoodsReceiptResponse
	ArchivedAt time.Time `json:"archived_at"`
}

// ReceiptArchiveHandler writes a snapshot of each receipt that reaches Completed.
// Archiving is best-effort: failures are logged and the event is acknowledged.
type ReceiptArchiveHandler struct {
	receipts ReceiptFinder
	archive  ReceiptArchiver
	logger   *zap.Logger
	now      func() time.Time
}

// NewReceiptArchiveHandler creates a new handler for goods receipt status changes
func NewReceiptArchiveHandler(receipts ReceiptFinder, archive ReceiptArchiver, logger *zap.Logger) *ReceiptArchiveHandler {
	return &ReceiptArchiveHandler{
		receipts: receipts,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
	}
}

// Name identifies the handler for idempotency bookkeeping
func (h *ReceiptArchiveHandler) Name() string {
	return "receipt_archive"
}

// EventTypes returns the event types this handler is interested in
func (h *ReceiptArchiveHandler) EventTypes() []string {
	return []string{receiving.EventTypeGoodsReceiptStatusChanged}
}

// Handle processes a GoodsReceiptStatusChangedEvent
func (h *ReceiptArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*receiving.GoodsReceiptStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			receiving.EventTypeGoodsReceiptStatusChanged, event.EventType())
	}
	if changed.ToStatus != receiving.StatusCompleted {
		return nil
	}

	log := logger.L(logger.WithContext(ctx, h.logger)).With(
		zap.String("goods_receipt_id", changed.GoodsReceiptID.String()),
		zap.String("grn_number", changed.GRNNumber),
	)

	receipt, err := h.receipts.FindByID(ctx, changed.GoodsReceiptID)
	if err != nil {
		log.Warn("receipt archive skipped: receipt not loaded", zap.Error(err))
		return nil
	}

	body, err := json.Marshal(ArchivedReceipt{
		GoodsReceiptResponse: ToGoodsReceiptResponse(receipt),
		ArchivedAt:           h.now().UTC(),
	})
	if err != nil {
		log.Warn("receipt archive skipped: snapshot not encoded", zap.Error(err))
		return nil
	}

	key, err := h.archive.ArchiveReceipt(ctx, receipt.GRNNumber, receipt.CreatedAt, body)
	if err != nil {
		log.Warn("receipt archive failed", zap.Error(err))
		return nil
	}
	log.Info("receipt archived", zap.String("key", key))
	return nil
}
