// Package receiving implements the goods receipt use-cases: create, transition,
// read, list and soft delete.
package receiving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	spanService     = "goods_receipt"
	defaultPageSize = 20
)

// GoodsReceiptService handles goods receipt business operations
type GoodsReceiptService struct {
	receiptRepo    receiving.GoodsReceiptRepository
	receivedQuery  receiving.ReceivedQuantityReader
	purchaseOrders *PurchaseOrderGateway
	validator      receiving.ReconciliationValidator
	eventPublisher shared.EventPublisher
	metrics        *telemetry.ReceivingMetrics
	now            func() time.Time
}

// NewGoodsReceiptService creates a new GoodsReceiptService
func NewGoodsReceiptService(
	receiptRepo receiving.GoodsReceiptRepository,
	receivedQuery receiving.ReceivedQuantityReader,
	purchaseOrders *PurchaseOrderGateway,
) *GoodsReceiptService {
	return &GoodsReceiptService{
		receiptRepo:    receiptRepo,
		receivedQuery:  receivedQuery,
		purchaseOrders: purchaseOrders,
		validator:      receiving.NewReconciliationValidator(),
		now:            time.Now,
	}
}

// SetEventPublisher sets a publisher for events the repository did not write to
// an outbox. With the outbox in place nothing is left to publish here.
func (s *GoodsReceiptService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the receiving metrics collector
func (s *GoodsReceiptService) SetMetrics(m *telemetry.ReceivingMetrics) {
	s.metrics = m
}

// Create records a delivery against a purchase order.
// Nothing is persisted unless every line reconciles.
func (s *GoodsReceiptService) Create(ctx context.Context, input CreateGoodsReceiptInput) (resp *GoodsReceiptResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create",
		telemetry.WithAttribute(telemetry.SpanAttrPurchaseOrderID, input.PurchaseOrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrItemCount, len(input.Items)),
	)
	defer func() { endSpan(span, err) }()

	if input.PurchaseOrderID == uuid.Nil {
		return nil, shared.NewValidationError("purchase order reference is required")
	}
	if len(input.Items) == 0 {
		return nil, shared.NewValidationError("a goods receipt must contain at least one item")
	}

	specs := input.ToItemSpecs()
	if shape := receiving.ValidateItemShapes(specs); !shape.IsValid() {
		s.recordReconciliationFailure(ctx, shape)
		return nil, shape.Err()
	}

	lineIDs := receiving.LineIDs(specs)
	po, err := s.purchaseOrders.Require(ctx, input.PurchaseOrderID, lineIDs)
	if err != nil {
		return nil, err
	}
	ordered := po.OrderedQuantities()

	previous, err := s.receivedQuery.SumReceivedByOrderLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	if result := s.validator.Validate(specs, ordered, previous); !result.IsValid() {
		s.recordReconciliationFailure(ctx, result)
		return nil, result.Err()
	}

	// numbered by the repository inside the insert transaction
	receipt, err := receiving.NewGoodsReceipt(input.PurchaseOrderID, input.ReceivedDate, input.Remarks, specs)
	if err != nil {
		return nil, err
	}

	// Another receipt against the same lines may have committed since the first check
	var recheck receiving.ReceivedQuantityCheck = func(fresh map[uuid.UUID]decimal.Decimal) error {
		result := s.validator.Validate(specs, ordered, fresh)
		if !result.IsValid() {
			s.recordReconciliationFailure(ctx, result)
		}
		return result.Err()
	}
	if err := s.receiptRepo.Create(ctx, receipt, recheck); err != nil {
		return nil, err
	}
	s.publishPending(ctx, receipt)

	s.metrics.RecordCreated(ctx, receipt.TotalRejected())
	telemetry.SetAttributes(trace.SpanFromContext(ctx),
		telemetry.SpanAttrGoodsReceiptID, receipt.ID.String(),
		telemetry.SpanAttrGRNNumber, receipt.GRNNumber,
	)
	logger.L(ctx).Info("goods receipt created",
		zap.String("goods_receipt_id", receipt.ID.String()),
		zap.String("grn_number", receipt.GRNNumber),
		zap.String("purchase_order_id", receipt.PurchaseOrderID.String()),
		zap.Int("item_count", len(receipt.Items)),
	)

	response := ToGoodsReceiptResponse(receipt)
	response.PurchaseOrder = po.Summary()
	return &response, nil
}

// Transition moves a receipt along its status lifecycle
func (s *GoodsReceiptService) Transition(ctx context.Context, input TransitionGoodsReceiptInput) (resp *GoodsReceiptSummary, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "transition",
		telemetry.WithAttribute(telemetry.SpanAttrGoodsReceiptID, input.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrTargetStatus, input.Status),
	)
	defer func() { endSpan(span, err) }()

	target, err := receiving.ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	receipt, err := s.receiptRepo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	from := receipt.Status
	if err := receipt.Transition(target, s.now()); err != nil {
		return nil, err
	}
	if err := s.receiptRepo.UpdateStatus(ctx, receipt); err != nil {
		return nil, err
	}
	s.publishPending(ctx, receipt)

	s.metrics.RecordTransition(ctx, from.String(), target.String())
	logger.L(ctx).Info("goods receipt status changed",
		zap.String("goods_receipt_id", receipt.ID.String()),
		zap.String("grn_number", receipt.GRNNumber),
		zap.String("from", from.String()),
		zap.String("to", target.String()),
	)

	summary := ToGoodsReceiptSummary(receipt)
	return &summary, nil
}

// GetByID returns a receipt with its items, decorated with its purchase order
// when procurement answers in time
func (s *GoodsReceiptService) GetByID(ctx context.Context, id uuid.UUID) (resp *GoodsReceiptResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "get",
		telemetry.WithAttribute(telemetry.SpanAttrGoodsReceiptID, id.String()),
	)
	defer func() { endSpan(span, err) }()

	receipt, err := s.receiptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	response := ToGoodsReceiptResponse(receipt)
	response.PurchaseOrder = s.purchaseOrders.Enrich(ctx, receipt.PurchaseOrderID)
	return &response, nil
}

// List returns one page of receipts. Soft-deleted receipts never appear.
func (s *GoodsReceiptService) List(ctx context.Context, input ListGoodsReceiptsInput) (resp *ListGoodsReceiptsResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "list")
	defer func() { endSpan(span, err) }()

	filter, err := s.buildFilter(input)
	if err != nil {
		return nil, err
	}

	receipts, err := s.receiptRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.receiptRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListGoodsReceiptsResult{
		Docs:  ToGoodsReceiptSummaries(receipts),
		Page:  filter.Page,
		Limit: filter.PageSize,
		Total: total,
	}, nil
}

// Delete soft-deletes a Draft receipt
func (s *GoodsReceiptService) Delete(ctx context.Context, id uuid.UUID) (resp *DeleteGoodsReceiptResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "delete",
		telemetry.WithAttribute(telemetry.SpanAttrGoodsReceiptID, id.String()),
	)
	defer func() { endSpan(span, err) }()

	receipt, err := s.receiptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := receipt.MarkDeleted(s.now()); err != nil {
		return nil, err
	}
	if err := s.receiptRepo.SoftDelete(ctx, receipt); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("goods receipt deleted",
		zap.String("goods_receipt_id", receipt.ID.String()),
		zap.String("grn_number", receipt.GRNNumber),
	)
	return &DeleteGoodsReceiptResult{ID: receipt.ID, Deleted: true}, nil
}

func (s *GoodsReceiptService) buildFilter(input ListGoodsReceiptsInput) (shared.Filter, error) {
	filter := shared.DefaultFilter()
	filter.PageSize = defaultPageSize
	if input.Page > 0 {
		filter.Page = input.Page
	}
	if input.Limit > 0 {
		filter.PageSize = input.Limit
	}
	if input.SortBy != "" {
		filter.OrderBy = input.SortBy
	}
	if input.SortOrder != "" {
		filter.OrderDir = input.SortOrder
	}
	filter.Search = input.Search
	filter.SearchFields = input.SearchFields

	if input.Status != "" {
		status, err := receiving.ParseStatus(input.Status)
		if err != nil {
			return filter, err
		}
		filter.Filters["status"] = status.String()
	}
	if input.PurchaseOrderID != "" {
		poID, err := uuid.Parse(input.PurchaseOrderID)
		if err != nil {
			return filter, shared.NewValidationError("purchase_order_id is not a valid UUID")
		}
		filter.Filters["purchase_order_id"] = poID
	}
	if input.ReceivedFrom != nil {
		filter.Filters["received_from"] = *input.ReceivedFrom
	}
	if input.ReceivedTo != nil {
		filter.Filters["received_to"] = *input.ReceivedTo
	}
	if input.ReceivedFrom != nil && input.ReceivedTo != nil && input.ReceivedTo.Before(*input.ReceivedFrom) {
		return filter, shared.NewValidationError("received_to must not be before received_from")
	}
	return filter, nil
}

// publishPending hands events the repository left on the aggregate to the
// publisher. Publishing happens after commit, so a failure is only logged.
func (s *GoodsReceiptService) publishPending(ctx context.Context, receipt *receiving.GoodsReceipt) {
	events := receipt.GetDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Error("failed to publish goods receipt events",
			zap.String("goods_receipt_id", receipt.ID.String()),
			zap.Error(err),
		)
	}
	receipt.ClearDomainEvents()
}

func (s *GoodsReceiptService) recordReconciliationFailure(ctx context.Context, result receiving.ReconciliationResult) {
	rules := result.Rules()
	names := make([]string, len(rules))
	for i, rule := range rules {
		names[i] = string(rule)
	}
	s.metrics.RecordReconciliationFailure(ctx, names)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
		if code := shared.ErrorCode(err); code != "" {
			telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, code)
		}
	} else {
		telemetry.SetOK(span)
	}
	span.End()
}
