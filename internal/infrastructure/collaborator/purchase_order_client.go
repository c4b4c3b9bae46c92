// Package collaborator holds clients for services the receiving service reads from
package collaborator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
)

// PatternGetPurchaseOrder is the procurement service operation for one order with lines
const PatternGetPurchaseOrder = "purchase_order.get"

// Caller sends one request/reply RPC. *messaging.Client implements it.
type Caller interface {
	Call(ctx context.Context, queue, pattern string, payload, out any) error
}

var _ Caller = (*messaging.Client)(nil)

// PurchaseOrderClient reads purchase orders from the procurement service over RPC
type PurchaseOrderClient struct {
	caller Caller
	queue  string
}

// NewPurchaseOrderClient creates a client that sends to queue
func NewPurchaseOrderClient(caller Caller, queue string) *PurchaseOrderClient {
	return &PurchaseOrderClient{caller: caller, queue: queue}
}

type getPurchaseOrderRequest struct {
	ID uuid.UUID `json:"id"`
}

// GetPurchaseOrder implements receiving.PurchaseOrderReader. A NOT_FOUND from
// procurement comes back as the same DomainError; transport failures are
// wrapped plain errors.
func (c *PurchaseOrderClient) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*receiving.PurchaseOrder, error) {
	var po receiving.PurchaseOrder
	if err := c.caller.Call(ctx, c.queue, PatternGetPurchaseOrder, getPurchaseOrderRequest{ID: id}, &po); err != nil {
		if messaging.IsRemoteError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("procurement %s: %w", PatternGetPurchaseOrder, err)
	}
	if po.ID == uuid.Nil {
		po.ID = id
	}
	return &po, nil
}

var _ receiving.PurchaseOrderReader = (*PurchaseOrderClient)(nil)
