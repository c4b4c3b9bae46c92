package receiving

import (
	"fmt"

	"github.com/pharmaerp/receiving/internal/domain/shared"
)

// GoodsReceiptStatus represents the QC-gated lifecycle of a goods receipt.
// Values are stored and exchanged verbatim; consumers compare on the exact strings.
type GoodsReceiptStatus string

const (
	StatusDraft      GoodsReceiptStatus = "Draft"
	StatusPendingQC  GoodsReceiptStatus = "Pending QC"
	StatusQCApproved GoodsReceiptStatus = "QC Approved"
	StatusQCRejected GoodsReceiptStatus = "QC Rejected"
	StatusCompleted  GoodsReceiptStatus = "Completed"
	StatusCancelled  GoodsReceiptStatus = "Cancelled"
)

var statusTransitions = map[GoodsReceiptStatus][]GoodsReceiptStatus{
	StatusDraft:      {StatusPendingQC, StatusCancelled},
	StatusPendingQC:  {StatusQCApproved, StatusQCRejected, StatusCancelled},
	StatusQCApproved: {StatusCompleted},
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []GoodsReceiptStatus {
	return []GoodsReceiptStatus{
		StatusDraft,
		StatusPendingQC,
		StatusQCApproved,
		StatusQCRejected,
		StatusCompleted,
		StatusCancelled,
	}
}

// IsValid checks if the status is a known value
func (s GoodsReceiptStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingQC, StatusQCApproved, StatusQCRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s GoodsReceiptStatus) String() string {
	return string(s)
}

// IsTerminal returns true when no further transition is possible
func (s GoodsReceiptStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanTransitionTo checks if transition to target status is valid
func (s GoodsReceiptStatus) CanTransitionTo(target GoodsReceiptStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseStatus converts an exact status string into a GoodsReceiptStatus
func ParseStatus(value string) (GoodsReceiptStatus, error) {
	s := GoodsReceiptStatus(value)
	if !s.IsValid() {
		return "", shared.NewValidationError("unknown goods receipt status %q", value).
			WithDetail("allowed", AllStatuses())
	}
	return s, nil
}

func newTransitionError(from, to GoodsReceiptStatus) *shared.DomainError {
	return shared.NewDomainError(
		shared.CodeInvalidStateTransition,
		fmt.Sprintf("Cannot move goods receipt from %s to %s", from, to),
	).WithDetail("from", from.String()).WithDetail("to", to.String())
}
