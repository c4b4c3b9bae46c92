//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	receivingapp "github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
)

func createInput(po PurchaseOrderFixture, qty string) receivingapp.CreateGoodsReceiptInput {
	q := decimal.RequireFromString(qty)
	return receivingapp.CreateGoodsReceiptInput{
		PurchaseOrderID: po.ID,
		ReceivedDate:    time.Now(),
		Items: []receivingapp.CreateGoodsReceiptItemInput{{
			PurchaseOrderItemID: po.Lines[0],
			ReceivedQuantity:    q,
			AcceptedQuantity:    q,
			RejectedQuantity:    decimal.Zero,
		}},
	}
}

// Concurrent creates against one PO line must never book more than was ordered
func TestConcurrentCreate_DoesNotOverCommitLine(t *testing.T) {
	tdb := NewTestDB(t)
	app := newTestApp(t, tdb, nil)
	po := tdb.SeedPurchaseOrder("CONFIRMED", "100")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		errs      []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := app.service.Create(context.Background(), createInput(po, "30"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			succeeded++
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	for _, err := range errs {
		assert.Equal(t, shared.CodeBusinessRuleViolation, shared.ErrorCode(err), "unexpected error: %v", err)
	}

	var total decimal.Decimal
	row := tdb.SqlDB.QueryRow(`SELECT COALESCE(SUM(received_quantity), 0) FROM goods_receipt_items WHERE purchase_order_item_id = $1`, po.Lines[0])
	require.NoError(t, row.Scan(&total))
	assert.True(t, total.Equal(decimal.NewFromInt(90)), "booked %s", total)
}

// Creates against different POs all land, each with its own GRN number
func TestConcurrentCreate_DistinctGRNNumbers(t *testing.T) {
	tdb := NewTestDB(t)
	app := newTestApp(t, tdb, nil)

	const workers = 6
	pos := make([]PurchaseOrderFixture, workers)
	for i := range pos {
		pos[i] = tdb.SeedPurchaseOrder("CONFIRMED", "100")
	}

	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			resp, err := app.service.Create(context.Background(), createInput(pos[i], "10"))
			errs[i] = err
			if err == nil {
				numbers[i] = resp.GRNNumber
			}
		}(i)
	}
	close(start)
	wg.Wait()

	seen := map[string]bool{}
	for i := range numbers {
		require.NoError(t, errs[i])
		assert.Regexp(t, grnPattern, numbers[i])
		assert.False(t, seen[numbers[i]], "duplicate %s", numbers[i])
		seen[numbers[i]] = true
	}
}

// Two callers moving the same receipt: exactly one wins, the other sees a conflict
// or, when it read after the winner committed, an invalid transition
func TestConcurrentTransition_SingleWinner(t *testing.T) {
	tdb := NewTestDB(t)
	app := newTestApp(t, tdb, nil)
	po := tdb.SeedPurchaseOrder("CONFIRMED", "100")

	created, err := app.service.Create(context.Background(), createInput(po, "10"))
	require.NoError(t, err)

	const workers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := app.service.Transition(context.Background(), receivingapp.TransitionGoodsReceiptInput{
				ID:     created.ID,
				Status: "Pending QC",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			winners++
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, winners)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrInvalidStateTransition),
			"unexpected error: %v", err)
	}

	receipt, err := app.service.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pending QC", receipt.Status)
	assert.Equal(t, 2, receipt.Version)
}
