package receiving

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// rendezvousRepository holds every Create until all expected callers have
// arrived, so the receipts are all built before any of them is stored.
type rendezvousRepository struct {
	receiving.GoodsReceiptRepository
	arrived sync.WaitGroup
}

func (r *rendezvousRepository) Create(ctx context.Context, receipt *receiving.GoodsReceipt, check receiving.ReceivedQuantityCheck) error {
	r.arrived.Done()
	r.arrived.Wait()
	return r.GoodsReceiptRepository.Create(ctx, receipt, check)
}

func setupReceivingDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.GoodsReceiptModel{},
		&models.GoodsReceiptItemModel{},
		&models.GoodsReceiptNumberSequenceModel{},
	))
	return db
}

func TestGoodsReceiptService_Create_InterleavedCreatesGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	db := setupReceivingDB(t)

	repo := &rendezvousRepository{GoodsReceiptRepository: persistence.NewGormGoodsReceiptRepository(db)}
	reader := new(MockPurchaseOrderReader)
	service := NewGoodsReceiptService(repo, persistence.NewReceivedQuantityQuery(db),
		NewPurchaseOrderGateway(reader, time.Second, time.Second))

	lineA, lineB := uuid.New(), uuid.New()
	poA, poB := newTestPurchaseOrder(lineA), newTestPurchaseOrder(lineB)
	reader.On("GetPurchaseOrder", mock.Anything, poA.ID).Return(poA, nil)
	reader.On("GetPurchaseOrder", mock.Anything, poB.ID).Return(poB, nil)

	inputs := []CreateGoodsReceiptInput{
		createInput(poA.ID, itemInput(lineA, "40", "40", "0")),
		createInput(poB.ID, itemInput(lineB, "25", "20", "5")),
	}
	repo.arrived.Add(len(inputs))

	responses := make([]*GoodsReceiptResponse, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = service.Create(ctx, inputs[i])
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	year := responses[0].CreatedAt.Year()
	assert.ElementsMatch(t,
		[]string{receiving.FormatGRNNumber(year, 1), receiving.FormatGRNNumber(year, 2)},
		[]string{responses[0].GRNNumber, responses[1].GRNNumber})

	var stored int64
	require.NoError(t, db.Model(&models.GoodsReceiptModel{}).Count(&stored).Error)
	assert.Equal(t, int64(2), stored)
}
