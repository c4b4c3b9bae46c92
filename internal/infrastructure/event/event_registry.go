package event

import (
	"github.com/pharmaerp/receiving/internal/domain/receiving"
)

// RegisterAllEvents registers every event the outbox may carry.
// The outbox processor cannot dispatch an entry whose type is missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(receiving.EventTypeGoodsReceiptCreated, &receiving.GoodsReceiptCreatedEvent{})
	serializer.Register(receiving.EventTypeGoodsReceiptStatusChanged, &receiving.GoodsReceiptStatusChangedEvent{})
}
