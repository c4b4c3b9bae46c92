//go:build integration

// Package integration runs the receiving service against real PostgreSQL and
// Redis containers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pharmaerp/receiving/internal/infrastructure/migration"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence"
)

// procurementSchema stands in for the procurement service's tables, which the
// receiving service reads in shared-database mode
const procurementSchema = `
CREATE TABLE IF NOT EXISTS purchase_orders (
	id            UUID PRIMARY KEY,
	order_number  VARCHAR(50) NOT NULL,
	supplier_name VARCHAR(200),
	status        VARCHAR(30) NOT NULL
);
CREATE TABLE IF NOT EXISTS purchase_order_items (
	id               UUID PRIMARY KEY,
	order_id         UUID NOT NULL REFERENCES purchase_orders (id),
	product_code     VARCHAR(50),
	product_name     VARCHAR(200),
	ordered_quantity NUMERIC(18, 4) NOT NULL,
	unit             VARCHAR(20),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	Database  *persistence.Database
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container, applies the embedded migrations and
// the procurement fixture schema
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("receiving_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)
	require.NoError(t, migration.Run(sqlDB, migration.DriverPostgres, "", zap.NewNop()), "Failed to run migrations")
	require.NoError(t, db.Exec(procurementSchema).Error, "Failed to create procurement tables")

	tdb := &TestDB{
		Database:  &persistence.Database{DB: db},
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// PurchaseOrderFixture is a seeded purchase order
type PurchaseOrderFixture struct {
	ID    uuid.UUID
	Lines []uuid.UUID
}

// SeedPurchaseOrder inserts an order with one line per ordered quantity
func (tdb *TestDB) SeedPurchaseOrder(status string, ordered ...string) PurchaseOrderFixture {
	tdb.t.Helper()

	po := PurchaseOrderFixture{ID: uuid.New()}
	err := tdb.DB.Exec(`INSERT INTO purchase_orders (id, order_number, supplier_name, status) VALUES (?, ?, ?, ?)`,
		po.ID, fmt.Sprintf("PO-%s", po.ID.String()[:8]), "Acme Pharma", status).Error
	require.NoError(tdb.t, err, "Failed to seed purchase order")

	for i, qty := range ordered {
		lineID := uuid.New()
		err := tdb.DB.Exec(`INSERT INTO purchase_order_items (id, order_id, product_code, product_name, ordered_quantity, unit, created_at)
			VALUES (?, ?, ?, ?, ?, 'kg', ?)`,
			lineID, po.ID, fmt.Sprintf("API-%03d", i+1), "Paracetamol API",
			decimal.RequireFromString(qty), time.Now().Add(time.Duration(i)*time.Second)).Error
		require.NoError(tdb.t, err, "Failed to seed purchase order line")
		po.Lines = append(po.Lines, lineID)
	}
	return po
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	// enough connections for the concurrency tests to actually race
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

// NewTestRedis starts a Redis container and returns a connected client
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}
