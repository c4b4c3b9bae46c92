package receiving

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Default collaborator timeouts
const (
	DefaultRequireTimeout = 3 * time.Second
	DefaultEnrichTimeout  = 500 * time.Millisecond
)

const collaboratorPurchaseOrder = "purchase_order"

// PurchaseOrderGateway decides what a purchase order lookup failure means.
// Require gates a write and fails loudly; Enrich decorates a read and never fails.
type PurchaseOrderGateway struct {
	reader         receiving.PurchaseOrderReader
	requireTimeout time.Duration
	enrichTimeout  time.Duration
	metrics        *telemetry.ReceivingMetrics
}

// NewPurchaseOrderGateway creates a gateway. Non-positive timeouts fall back to the defaults.
func NewPurchaseOrderGateway(reader receiving.PurchaseOrderReader, requireTimeout, enrichTimeout time.Duration) *PurchaseOrderGateway {
	if requireTimeout <= 0 {
		requireTimeout = DefaultRequireTimeout
	}
	if enrichTimeout <= 0 {
		enrichTimeout = DefaultEnrichTimeout
	}
	return &PurchaseOrderGateway{
		reader:         reader,
		requireTimeout: requireTimeout,
		enrichTimeout:  enrichTimeout,
	}
}

// SetMetrics sets the receiving metrics collector
func (g *PurchaseOrderGateway) SetMetrics(m *telemetry.ReceivingMetrics) {
	g.metrics = m
}

// Require fetches the order and checks it can take a receipt for lineIDs.
// A missing order or line is NOT_FOUND, a closed order is BUSINESS_RULE_VIOLATION,
// and any other failure (timeouts included) is UPSTREAM_UNAVAILABLE.
func (g *PurchaseOrderGateway) Require(ctx context.Context, purchaseOrderID uuid.UUID, lineIDs []uuid.UUID) (*receiving.PurchaseOrder, error) {
	po, outcome, err := g.fetch(ctx, purchaseOrderID, g.requireTimeout)
	g.metrics.RecordCollaboratorCall(ctx, collaboratorPurchaseOrder, telemetry.ModeRequire, outcome.label, outcome.took)
	if err != nil {
		if shared.ErrorCode(err) == shared.CodeNotFound {
			return nil, err
		}
		logger.L(ctx).Warn("purchase order lookup failed",
			zap.String("purchase_order_id", purchaseOrderID.String()),
			zap.String("outcome", outcome.label),
			zap.Error(err),
		)
		return nil, shared.WrapDomainError(shared.CodeUpstreamUnavailable,
			"purchase order service is unavailable", err).
			WithDetail("purchase_order_id", purchaseOrderID.String())
	}

	if !po.AcceptsReceipts() {
		return nil, shared.NewDomainError(shared.CodeBusinessRuleViolation,
			"purchase order "+po.OrderNumber+" is "+po.Status+" and cannot receive goods").
			WithDetail("purchase_order_id", purchaseOrderID.String()).
			WithDetail("purchase_order_status", po.Status)
	}

	if missing := po.MissingLines(lineIDs); len(missing) > 0 {
		ids := make([]string, len(missing))
		for i, id := range missing {
			ids[i] = id.String()
		}
		return nil, shared.NewNotFoundError("purchase order line", ids[0]).
			WithDetail("purchase_order_id", purchaseOrderID.String()).
			WithDetail("missing_lines", ids)
	}
	return po, nil
}

// Enrich returns a summary of the order, or nil when it cannot be had in time
func (g *PurchaseOrderGateway) Enrich(ctx context.Context, purchaseOrderID uuid.UUID) *receiving.PurchaseOrderSummary {
	po, outcome, err := g.fetch(ctx, purchaseOrderID, g.enrichTimeout)
	g.metrics.RecordCollaboratorCall(ctx, collaboratorPurchaseOrder, telemetry.ModeEnrich, outcome.label, outcome.took)
	if err != nil {
		logger.L(ctx).Warn("purchase order enrichment skipped",
			zap.String("purchase_order_id", purchaseOrderID.String()),
			zap.String("outcome", outcome.label),
			zap.Error(err),
		)
		return nil
	}
	return po.Summary()
}

type callOutcome struct {
	label string
	took  time.Duration
}

func (g *PurchaseOrderGateway) fetch(ctx context.Context, id uuid.UUID, timeout time.Duration) (*receiving.PurchaseOrder, callOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	po, err := g.reader.GetPurchaseOrder(callCtx, id)
	outcome := callOutcome{label: telemetry.OutcomeOK, took: time.Since(start)}

	switch {
	case err == nil && po == nil:
		err = shared.NewNotFoundError("purchase order", id)
		outcome.label = telemetry.OutcomeNotFound
	case err == nil:
	case shared.ErrorCode(err) == shared.CodeNotFound:
		outcome.label = telemetry.OutcomeNotFound
	case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil:
		outcome.label = telemetry.OutcomeTimeout
	case shared.ErrorCode(err) == shared.CodeUpstreamUnavailable:
		outcome.label = telemetry.OutcomeUnavailable
	default:
		outcome.label = telemetry.OutcomeError
	}
	return po, outcome, err
}
