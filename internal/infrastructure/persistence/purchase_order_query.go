package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PurchaseOrderQuery reads purchase orders straight from the procurement tables
// when receiving shares the ERP database. It never writes them.
type PurchaseOrderQuery struct {
	db *sqlx.DB
}

// NewPurchaseOrderQuery wraps an existing connection pool. driverName picks the
// bind style ("pgx"/"postgres" use $n, "sqlite3" uses ?).
func NewPurchaseOrderQuery(db *sql.DB, driverName string) *PurchaseOrderQuery {
	return &PurchaseOrderQuery{db: sqlx.NewDb(db, driverName)}
}

// NewPurchaseOrderQueryFromDatabase reuses the gorm pool
func NewPurchaseOrderQueryFromDatabase(database *Database) (*PurchaseOrderQuery, error) {
	sqlDB, err := database.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	driver := "pgx"
	if database.DriverName() == DriverSQLite {
		driver = "sqlite3"
	}
	return NewPurchaseOrderQuery(sqlDB, driver), nil
}

type purchaseOrderRow struct {
	ID           uuid.UUID      `db:"id"`
	OrderNumber  string         `db:"order_number"`
	SupplierName sql.NullString `db:"supplier_name"`
	Status       string         `db:"status"`
}

type purchaseOrderLineRow struct {
	ID              uuid.UUID       `db:"id"`
	ProductCode     sql.NullString  `db:"product_code"`
	ProductName     sql.NullString  `db:"product_name"`
	OrderedQuantity decimal.Decimal `db:"ordered_quantity"`
	Unit            sql.NullString  `db:"unit"`
}

const (
	selectPurchaseOrder = `SELECT id, order_number, supplier_name, status
FROM purchase_orders WHERE id = ?`
	selectPurchaseOrderLines = `SELECT id, product_code, product_name, ordered_quantity, unit
FROM purchase_order_items WHERE order_id = ? ORDER BY created_at, id`
)

// GetPurchaseOrder implements receiving.PurchaseOrderReader
func (q *PurchaseOrderQuery) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*receiving.PurchaseOrder, error) {
	var header purchaseOrderRow
	if err := q.db.GetContext(ctx, &header, q.db.Rebind(selectPurchaseOrder), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewNotFoundError("purchase order", id)
		}
		return nil, fmt.Errorf("query purchase order %s: %w", id, err)
	}

	var lines []purchaseOrderLineRow
	if err := q.db.SelectContext(ctx, &lines, q.db.Rebind(selectPurchaseOrderLines), id); err != nil {
		return nil, fmt.Errorf("query purchase order lines %s: %w", id, err)
	}

	po := &receiving.PurchaseOrder{
		ID:           header.ID,
		OrderNumber:  header.OrderNumber,
		SupplierName: header.SupplierName.String,
		Status:       header.Status,
		Lines:        make([]receiving.PurchaseOrderLine, len(lines)),
	}
	for i, line := range lines {
		po.Lines[i] = receiving.PurchaseOrderLine{
			ID:              line.ID,
			ProductCode:     line.ProductCode.String,
			ProductName:     line.ProductName.String,
			OrderedQuantity: line.OrderedQuantity,
			Unit:            line.Unit.String,
		}
	}
	return po, nil
}
