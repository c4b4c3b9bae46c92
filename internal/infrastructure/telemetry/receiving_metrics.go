package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ReceivingMeterName is the instrumentation scope for goods receipt metrics
const ReceivingMeterName = "receiving"

// Collaborator call modes
const (
	ModeRequire = "require"
	ModeEnrich  = "enrich"
)

// Collaborator call outcomes
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// ReceivingMetrics holds the goods receipt business instruments.
// All methods are safe on a nil receiver.
type ReceivingMetrics struct {
	created                *Counter
	transitions            *Counter
	rejectedQuantity       *FloatCounter
	reconciliationFailures *Counter
	collaboratorDuration   *Histogram
}

// NewReceivingMetrics registers the receiving instruments on meter
func NewReceivingMetrics(meter metric.Meter) (*ReceivingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReceivingMetrics{}
	var err error

	if m.created, err = NewCounter(meter, "grn_created_total", "Goods receipts created", "{receipt}"); err != nil {
		return nil, err
	}
	if m.transitions, err = NewCounter(meter, "grn_transition_total", "Goods receipt status transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.rejectedQuantity, err = NewFloatCounter(meter, "grn_rejected_quantity_total", "Quantity rejected at receipt", "{unit}"); err != nil {
		return nil, err
	}
	if m.reconciliationFailures, err = NewCounter(meter, "grn_reconciliation_failures_total", "Receipts refused by quantity reconciliation", "{failure}"); err != nil {
		return nil, err
	}
	if m.collaboratorDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "grn_collaborator_duration_seconds",
		Description: "Duration of collaborator calls",
		Unit:        "s",
		Boundaries:  CollaboratorDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCreated counts a persisted receipt and its rejected quantity
func (m *ReceivingMetrics) RecordCreated(ctx context.Context, rejected decimal.Decimal) {
	if m == nil {
		return
	}
	m.created.Inc(ctx)
	if rejected.IsPositive() {
		m.rejectedQuantity.Add(ctx, rejected.InexactFloat64())
	}
}

// RecordTransition counts a successful status transition
func (m *ReceivingMetrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx, AttrFromStatus.String(from), AttrToStatus.String(to))
}

// RecordReconciliationFailure counts one failure per broken rule
func (m *ReceivingMetrics) RecordReconciliationFailure(ctx context.Context, rules []string) {
	if m == nil {
		return
	}
	for _, rule := range rules {
		m.reconciliationFailures.Inc(ctx, AttrRule.String(rule))
	}
}

// RecordCollaboratorCall records the duration of one collaborator call
func (m *ReceivingMetrics) RecordCollaboratorCall(ctx context.Context, collaborator, mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.collaboratorDuration.RecordDuration(ctx, d,
		AttrCollaborator.String(collaborator),
		AttrMode.String(mode),
		AttrOutcome.String(outcome),
	)
}

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor
var ErrMeterNil = &MetricsError{Op: "NewReceivingMetrics", Err: "meter cannot be nil"}

// MetricsError describes a metrics setup failure
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

