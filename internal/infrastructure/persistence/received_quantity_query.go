package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/doug-martin/goqu/v9"
	// dialects used to render SQL for the configured driver
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceivedQuantityQuery sums received quantities per purchase order line across
// non-deleted goods receipts. It implements receiving.ReceivedQuantityReader.
type ReceivedQuantityQuery struct {
	db *gorm.DB
}

// NewReceivedQuantityQuery creates a new ReceivedQuantityQuery
func NewReceivedQuantityQuery(db *gorm.DB) *ReceivedQuantityQuery {
	return &ReceivedQuantityQuery{db: db}
}

// SumReceivedByOrderLines returns line ID -> cumulative received quantity.
// Lines with no receipts are absent from the map.
func (q *ReceivedQuantityQuery) SumReceivedByOrderLines(ctx context.Context, lineIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	sums, err := sumReceived(q.db.WithContext(ctx), lineIDs)
	if err != nil {
		return nil, shared.NewPersistenceError("sum received quantities", err)
	}
	return sums, nil
}

type receivedSumRow struct {
	PurchaseOrderItemID uuid.UUID       `gorm:"column:purchase_order_item_id"`
	Received            decimal.Decimal `gorm:"column:received"`
}

// sumReceived runs the aggregate on db, which may be an open transaction
func sumReceived(db *gorm.DB, lineIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	sums := make(map[uuid.UUID]decimal.Decimal, len(lineIDs))
	if len(lineIDs) == 0 {
		return sums, nil
	}

	query, err := buildReceivedSumSQL(goquDialect(db), lineIDs)
	if err != nil {
		return nil, err
	}

	var rows []receivedSumRow
	if err := db.Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		sums[row.PurchaseOrderItemID] = row.Received
	}
	return sums, nil
}

// buildReceivedSumSQL renders the SUM ... GROUP BY statement with literals inlined,
// so it can go through gorm's Raw regardless of placeholder style
func buildReceivedSumSQL(dialect string, lineIDs []uuid.UUID) (string, error) {
	ids := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		ids[i] = id.String()
	}

	ds := goqu.Dialect(dialect).
		From(goqu.T("goods_receipt_items").As("i")).
		Join(
			goqu.T("goods_receipts").As("r"),
			goqu.On(goqu.I("r.id").Eq(goqu.I("i.goods_receipt_id"))),
		).
		Select(
			goqu.I("i.purchase_order_item_id"),
			goqu.COALESCE(goqu.SUM(goqu.I("i.received_quantity")), 0).As("received"),
		).
		Where(
			goqu.I("r.deleted_at").IsNull(),
			goqu.I("i.purchase_order_item_id").In(ids),
		).
		GroupBy(goqu.I("i.purchase_order_item_id")).
		Order(goqu.I("i.purchase_order_item_id").Asc())

	query, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("build received quantity query: %w", err)
	}
	return query, nil
}

func goquDialect(db *gorm.DB) string {
	if db.Dialector.Name() == DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// lockOrderLines takes a transaction-scoped advisory lock per PO line so two
// creates against the same line serialize until commit. Lines are locked in a
// fixed order to avoid deadlocks. SQLite needs nothing: it has a single writer.
func lockOrderLines(tx *gorm.DB, lineIDs []uuid.UUID) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	keys := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		keys[i] = id.String()
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
			return fmt.Errorf("lock purchase order line %s: %w", key, err)
		}
	}
	return nil
}
