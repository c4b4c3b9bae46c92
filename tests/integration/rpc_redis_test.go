//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	receivingapp "github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/collaborator"
	"github.com/pharmaerp/receiving/internal/infrastructure/event"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
	"github.com/pharmaerp/receiving/internal/interfaces/rpc"
	"github.com/pharmaerp/receiving/tests/testutil"
)

const (
	receivingQueue   = "rpc:receiving:test"
	procurementQueue = "rpc:procurement:test"
)

// startServer runs a messaging server until the test ends
func startServer(t *testing.T, queue messaging.Queue, name string, dispatcher messaging.Dispatcher) {
	t.Helper()
	server := messaging.NewServer(queue, messaging.ServerConfig{
		Queue:          name,
		Workers:        4,
		RequestTimeout: 5 * time.Second,
		PollTimeout:    200 * time.Millisecond,
		ReplyTTL:       time.Minute,
	}, dispatcher, zap.NewNop())
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop(context.Background()) })
}

// fakeProcurement answers purchase_order.get for one order
func fakeProcurement(po *receiving.PurchaseOrder) *rpc.Router {
	r := rpc.NewRouter()
	r.Handle(collaborator.PatternGetPurchaseOrder, func(_ context.Context, data jsoniter.RawMessage) (any, error) {
		var req struct {
			ID uuid.UUID `json:"id"`
		}
		if err := jsoniter.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		if req.ID != po.ID {
			return nil, shared.NewNotFoundError("purchase order", req.ID)
		}
		return po, nil
	})
	return r
}

func TestRPC_GoodsReceiptOverRedis(t *testing.T) {
	tdb := NewTestDB(t)
	redisClient := NewTestRedis(t)

	po := &receiving.PurchaseOrder{
		ID:           uuid.New(),
		OrderNumber:  "PO-2026-00042",
		SupplierName: "Acme Pharma",
		Status:       "CONFIRMED",
		Lines: []receiving.PurchaseOrderLine{
			{ID: uuid.New(), ProductCode: "API-001", OrderedQuantity: decimal.NewFromInt(50), Unit: "kg"},
		},
	}
	startServer(t, redisClient, procurementQueue, fakeProcurement(po))

	client := messaging.NewClient(redisClient)
	app := newTestApp(t, tdb, collaborator.NewPurchaseOrderClient(client, procurementQueue))
	startServer(t, redisClient, receivingQueue, rpc.NewGoodsReceiptRoutes(app.service))

	ctx := testutil.Context(t, 30*time.Second)

	// create over RPC, with the purchase order itself read over RPC
	var created receivingapp.GoodsReceiptResponse
	err := client.Call(ctx, receivingQueue, rpc.PatternCreate, map[string]any{
		"purchase_order_id": po.ID,
		"received_date":     time.Now().UTC(),
		"items": []map[string]any{{
			"purchase_order_item_id": po.Lines[0].ID,
			"received_quantity":      "20",
			"accepted_quantity":      "18",
			"rejected_quantity":      "2",
		}},
	}, &created)
	require.NoError(t, err)
	assert.Regexp(t, grnPattern, created.GRNNumber)
	assert.Equal(t, "Draft", created.Status)

	var summary receivingapp.GoodsReceiptSummary
	require.NoError(t, client.Call(ctx, receivingQueue, rpc.PatternTransition,
		map[string]any{"id": created.ID, "status": "Pending QC"}, &summary))
	assert.Equal(t, "Pending QC", summary.Status)

	var fetched receivingapp.GoodsReceiptResponse
	require.NoError(t, client.Call(ctx, receivingQueue, rpc.PatternGet, map[string]any{"id": created.ID}, &fetched))
	require.NotNil(t, fetched.PurchaseOrder)
	assert.Equal(t, "PO-2026-00042", fetched.PurchaseOrder.OrderNumber)

	// remote domain errors keep their code across the queue
	err = client.Call(ctx, receivingQueue, rpc.PatternTransition,
		map[string]any{"id": created.ID, "status": "Completed"}, &summary)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidStateTransition))

	err = client.Call(ctx, receivingQueue, rpc.PatternGet, map[string]any{"id": uuid.New()}, &fetched)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	err = client.Call(ctx, receivingQueue, rpc.PatternCreate, map[string]any{
		"purchase_order_id": uuid.New(),
		"received_date":     time.Now().UTC(),
		"items": []map[string]any{{
			"purchase_order_item_id": po.Lines[0].ID,
			"received_quantity":      "1",
			"accepted_quantity":      "1",
			"rejected_quantity":      "0",
		}},
	}, &created)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestStreamRelay_PublishesToRedis(t *testing.T) {
	tdb := NewTestDB(t)
	redisClient := NewTestRedis(t)
	app := newTestApp(t, tdb, nil)
	po := tdb.SeedPurchaseOrder("CONFIRMED", "10")

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	relay := event.NewStreamRelay(redisClient, serializer, "receiving.events.test", 1000, zap.NewNop())

	created, err := app.service.Create(context.Background(), createInput(po, "5"))
	require.NoError(t, err)

	testutil.RequireEventually(t, func() bool {
		return len(app.recorder.HandledOfType(receiving.EventTypeGoodsReceiptCreated)) == 1
	}, 10*time.Second, 50*time.Millisecond)
	require.NoError(t, relay.Handle(context.Background(), app.recorder.HandledOfType(receiving.EventTypeGoodsReceiptCreated)[0]))

	entries, err := redisClient.XRange(context.Background(), "receiving.events.test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, receiving.EventTypeGoodsReceiptCreated, entries[0].Values["event_type"])
	assert.Contains(t, entries[0].Values["payload"], created.ID.String())
}
