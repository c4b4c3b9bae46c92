package receiving

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ViolationRule names the reconciliation rule a line broke
type ViolationRule string

const (
	RuleReceivedNotPositive ViolationRule = "RECEIVED_NOT_POSITIVE"
	RuleNegativeQuantity    ViolationRule = "NEGATIVE_QUANTITY"
	RuleQuantityMismatch    ViolationRule = "QUANTITY_MISMATCH"
	RuleUnknownOrderLine    ViolationRule = "UNKNOWN_ORDER_LINE"
	RuleExceedsOrdered      ViolationRule = "EXCEEDS_ORDERED"
	RuleDuplicateBatch      ViolationRule = "DUPLICATE_BATCH"
)

// IsShapeRule reports whether the rule concerns the line's own numbers
// rather than its relation to the purchase order
func (r ViolationRule) IsShapeRule() bool {
	switch r {
	case RuleReceivedNotPositive, RuleNegativeQuantity, RuleQuantityMismatch, RuleDuplicateBatch:
		return true
	}
	return false
}

// Violation is one broken rule on one line
type Violation struct {
	LineIndex           int           `json:"line_index"`
	PurchaseOrderItemID uuid.UUID     `json:"purchase_order_item_id"`
	Rule                ViolationRule `json:"rule"`
	Message             string        `json:"message"`
}

// ReconciliationResult is the outcome of a validation run. Zero violations means valid.
type ReconciliationResult struct {
	Violations []Violation
}

// IsValid returns true when no rule was broken
func (r ReconciliationResult) IsValid() bool {
	return len(r.Violations) == 0
}

// Rules returns the distinct rules broken, sorted
func (r ReconciliationResult) Rules() []ViolationRule {
	seen := make(map[ViolationRule]struct{})
	for _, v := range r.Violations {
		seen[v.Rule] = struct{}{}
	}
	rules := make([]ViolationRule, 0, len(seen))
	for rule := range seen {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i] < rules[j] })
	return rules
}

// Err converts the result into a typed error, or nil when valid.
// Shape problems win over order lookups, which win over quantity limits.
func (r ReconciliationResult) Err() error {
	if r.IsValid() {
		return nil
	}

	code := shared.CodeBusinessRuleViolation
	hasShape, hasUnknown := false, false
	for _, v := range r.Violations {
		if v.Rule.IsShapeRule() {
			hasShape = true
		}
		if v.Rule == RuleUnknownOrderLine {
			hasUnknown = true
		}
	}
	switch {
	case hasShape:
		code = shared.CodeValidation
	case hasUnknown:
		code = shared.CodeNotFound
	}

	messages := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		messages[i] = v.Message
	}
	return shared.NewDomainError(code, strings.Join(messages, "; ")).
		WithDetail("violations", r.Violations)
}

// ReconciliationValidator checks receipt lines against the purchase order and
// against what earlier receipts already booked. It holds no state.
type ReconciliationValidator struct{}

// NewReconciliationValidator creates a validator
func NewReconciliationValidator() ReconciliationValidator {
	return ReconciliationValidator{}
}

// Validate runs every line-level and order-level rule.
// ordered maps PO line to ordered quantity; previouslyReceived maps PO line to
// the sum received on other, non-deleted receipts. Lines in the same receipt
// that repeat a PO line accumulate.
func (ReconciliationValidator) Validate(
	specs []ItemSpec,
	ordered map[uuid.UUID]decimal.Decimal,
	previouslyReceived map[uuid.UUID]decimal.Decimal,
) ReconciliationResult {
	result := ValidateItemShapes(specs)

	running := make(map[uuid.UUID]decimal.Decimal, len(ordered))
	for i, spec := range specs {
		orderedQty, ok := ordered[spec.PurchaseOrderItemID]
		if !ok {
			result.Violations = append(result.Violations, Violation{
				LineIndex:           i,
				PurchaseOrderItemID: spec.PurchaseOrderItemID,
				Rule:                RuleUnknownOrderLine,
				Message:             fmt.Sprintf("line %d: purchase order item %s is not on the order", i+1, spec.PurchaseOrderItemID),
			})
			continue
		}

		before, seen := running[spec.PurchaseOrderItemID]
		if !seen {
			before = previouslyReceived[spec.PurchaseOrderItemID]
		}
		after := before.Add(spec.ReceivedQuantity)
		running[spec.PurchaseOrderItemID] = after

		if after.GreaterThan(orderedQty) {
			result.Violations = append(result.Violations, Violation{
				LineIndex:           i,
				PurchaseOrderItemID: spec.PurchaseOrderItemID,
				Rule:                RuleExceedsOrdered,
				Message: fmt.Sprintf("line %d: cumulative received %s exceeds ordered %s (already received %s)",
					i+1, after.String(), orderedQty.String(), before.String()),
			})
		}
	}
	return result
}

// ValidateItemShapes checks each line's own quantities without order context
func ValidateItemShapes(specs []ItemSpec) ReconciliationResult {
	var result ReconciliationResult
	batches := make(map[string]int)

	for i, spec := range specs {
		add := func(rule ViolationRule, format string, args ...any) {
			result.Violations = append(result.Violations, Violation{
				LineIndex:           i,
				PurchaseOrderItemID: spec.PurchaseOrderItemID,
				Rule:                rule,
				Message:             fmt.Sprintf("line %d: ", i+1) + fmt.Sprintf(format, args...),
			})
		}

		if !spec.ReceivedQuantity.IsPositive() {
			add(RuleReceivedNotPositive, "received quantity must be greater than zero, got %s", spec.ReceivedQuantity.String())
		}
		if spec.AcceptedQuantity.IsNegative() || spec.RejectedQuantity.IsNegative() {
			add(RuleNegativeQuantity, "accepted and rejected quantities cannot be negative")
		}
		if !spec.AcceptedQuantity.Add(spec.RejectedQuantity).Equal(spec.ReceivedQuantity) {
			add(RuleQuantityMismatch, "accepted %s + rejected %s must equal received %s",
				spec.AcceptedQuantity.String(), spec.RejectedQuantity.String(), spec.ReceivedQuantity.String())
		}

		if batch := normalizeBatch(spec.BatchNumber); batch != nil {
			key := spec.PurchaseOrderItemID.String() + "|" + strings.ToUpper(*batch)
			if first, dup := batches[key]; dup {
				add(RuleDuplicateBatch, "batch %s repeats line %d for the same order item", *batch, first+1)
			} else {
				batches[key] = i
			}
		}
	}
	return result
}

// LineIDs returns the distinct PO lines referenced by specs, in first-seen order
func LineIDs(specs []ItemSpec) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(specs))
	ids := make([]uuid.UUID, 0, len(specs))
	for _, spec := range specs {
		if _, ok := seen[spec.PurchaseOrderItemID]; ok {
			continue
		}
		seen[spec.PurchaseOrderItemID] = struct{}{}
		ids = append(ids, spec.PurchaseOrderItemID)
	}
	return ids
}
