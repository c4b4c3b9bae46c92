package receiving

import (
	"context"
	"fmt"
	"math"

	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// QCSamplingHandler is the audit log of QC sampling. It records the sample size
// for each freshly recorded receipt and sends nothing to QC: the stream relay,
// when enabled, is what hands goods_receipt.created over to QC.
type QCSamplingHandler struct {
	logger *zap.Logger
}

// NewQCSamplingHandler creates a new handler for goods receipt created events
func NewQCSamplingHandler(logger *zap.Logger) *QCSamplingHandler {
	return &QCSamplingHandler{logger: logger}
}

// Name identifies the handler for idempotency bookkeeping
func (h *QCSamplingHandler) Name() string {
	return "qc_sampling"
}

// EventTypes returns the event types this handler is interested in
func (h *QCSamplingHandler) EventTypes() []string {
	return []string{receiving.EventTypeGoodsReceiptCreated}
}

// Handle processes a GoodsReceiptCreatedEvent
func (h *QCSamplingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*receiving.GoodsReceiptCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			receiving.EventTypeGoodsReceiptCreated, event.EventType())
	}

	logger.L(logger.WithContext(ctx, h.logger)).Info("qc sampling audit",
		zap.String("goods_receipt_id", created.GoodsReceiptID.String()),
		zap.String("grn_number", created.GRNNumber),
		zap.String("purchase_order_id", created.PurchaseOrderID.String()),
		zap.Int("item_count", created.ItemCount),
		zap.Int("sample_lines", SampleSize(created.ItemCount)),
		zap.String("total_received", created.TotalReceived.String()),
		zap.String("total_rejected", created.TotalRejected.String()),
	)
	return nil
}

// SampleSize applies the sqrt(n)+1 rule to n received lines, capped at n
func SampleSize(n int) int {
	if n <= 0 {
		return 0
	}
	size := int(math.Ceil(math.Sqrt(float64(n)))) + 1
	if size > n {
		return n
	}
	return size
}
