//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	receivingapp "github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/infrastructure/cache"
	"github.com/pharmaerp/receiving/internal/infrastructure/config"
	"github.com/pharmaerp/receiving/internal/infrastructure/event"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence"
	"github.com/pharmaerp/receiving/internal/infrastructure/storage"
	"github.com/pharmaerp/receiving/internal/interfaces/http/handler"
	"github.com/pharmaerp/receiving/internal/interfaces/http/router"
	"github.com/pharmaerp/receiving/tests/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testApp is the service assembled the way cmd/server assembles it, over a
// container database and in-process subscribers
type testApp struct {
	db       *TestDB
	service  *receivingapp.GoodsReceiptService
	engine   *gin.Engine
	archive  *storage.MemoryArchive
	recorder *testutil.RecordingHandler
}

func newTestApp(t *testing.T, tdb *TestDB, poReader receiving.PurchaseOrderReader) *testApp {
	t.Helper()
	log := zap.NewNop()

	if poReader == nil {
		query, err := persistence.NewPurchaseOrderQueryFromDatabase(tdb.Database)
		require.NoError(t, err)
		poReader = query
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	receiptRepo := persistence.NewGormGoodsReceiptRepository(tdb.DB)
	receiptRepo.SetOutboxEventSaver(event.NewOutboxPublisher(serializer))
	gateway := receivingapp.NewPurchaseOrderGateway(poReader, 5*time.Second, time.Second)
	service := receivingapp.NewGoodsReceiptService(receiptRepo, persistence.NewReceivedQuantityQuery(tdb.DB), gateway)

	archive := storage.NewMemoryArchive()
	recorder := testutil.NewRecordingHandler()
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(recorder)
	bus.Subscribe(event.NewIdempotentHandler(
		receivingapp.NewReceiptArchiveHandler(receiptRepo, archive, log),
		cache.NewInMemoryIdempotencyStore(), log))
	require.NoError(t, bus.Start(context.Background()))

	outboxConfig := event.DefaultOutboxProcessorConfig()
	outboxConfig.PollInterval = 50 * time.Millisecond
	outboxConfig.CleanupEnabled = false
	processor := event.NewOutboxProcessor(event.NewGormOutboxRepository(tdb.DB), bus, serializer, outboxConfig, log)
	require.NoError(t, processor.Start(context.Background()))
	t.Cleanup(func() {
		_ = processor.Stop(context.Background())
		_ = bus.Stop(context.Background())
	})

	engine, err := router.NewEngine(config.HTTPConfig{MaxBodySize: 1 << 20}, router.EngineOptions{Logger: log})
	require.NoError(t, err)
	handler.NewSystemHandler("receiving", "test", map[string]handler.PingFunc{"database": tdb.Database.Ping}).
		RegisterRoutes(engine)
	router.NewRouter(engine).Register(handler.NewGoodsReceiptHandler(service).Routes()).Setup()

	return &testApp{
		db:       tdb,
		service:  service,
		engine:   engine,
		archive:  archive,
		recorder: recorder,
	}
}
