package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// CodeConcurrentModification is the detail attached to CONFLICT errors raised by the version guard
const CodeConcurrentModification = "CONCURRENT_MODIFICATION"

// GormGoodsReceiptRepository implements receiving.GoodsReceiptRepository using GORM
type GormGoodsReceiptRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormGoodsReceiptRepository creates a new GormGoodsReceiptRepository
func NewGormGoodsReceiptRepository(db *gorm.DB) *GormGoodsReceiptRepository {
	return &GormGoodsReceiptRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormGoodsReceiptRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a non-deleted goods receipt with its items
func (r *GormGoodsReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceipt, error) {
	var model models.GoodsReceiptModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("goods receipt", id)
		}
		return nil, shared.NewPersistenceError("load goods receipt", err)
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of non-deleted receipts, headers only
func (r *GormGoodsReceiptRepository) FindAll(ctx context.Context, filter shared.Filter) ([]receiving.GoodsReceipt, error) {
	var receiptModels []models.GoodsReceiptModel

	query := r.db.WithContext(ctx).Model(&models.GoodsReceiptModel{}).Where("deleted_at IS NULL")
	query = r.applyFilter(query, filter)

	if err := query.Find(&receiptModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list goods receipts", err)
	}
	receipts := make([]receiving.GoodsReceipt, len(receiptModels))
	for i := range receiptModels {
		receipts[i] = *receiptModels[i].ToDomain()
	}
	return receipts, nil
}

// Count counts non-deleted receipts matching filter, ignoring paging
func (r *GormGoodsReceiptRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.GoodsReceiptModel{}).Where("deleted_at IS NULL")
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, shared.NewPersistenceError("count goods receipts", err)
	}
	return count, nil
}

// Create inserts the header, its items and the receipt's pending events atomically.
// check runs first, inside the transaction, against freshly summed quantities.
func (r *GormGoodsReceiptRepository) Create(ctx context.Context, receipt *receiving.GoodsReceipt, check receiving.ReceivedQuantityCheck) error {
	if len(receipt.Items) == 0 {
		return shared.NewValidationError("a goods receipt must contain at least one item")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if check != nil {
			lineIDs := receipt.PurchaseOrderItemIDs()
			if err := lockOrderLines(tx, lineIDs); err != nil {
				return err
			}
			sums, err := sumReceived(tx, lineIDs)
			if err != nil {
				return err
			}
			if err := check(sums); err != nil {
				return err
			}
		}

		if receipt.GRNNumber == "" {
			grnNumber, err := nextGRNNumber(tx, receipt.CreatedAt.Year())
			if err != nil {
				return err
			}
			if err := receipt.AssignNumber(grnNumber); err != nil {
				return err
			}
		}

		model := models.GoodsReceiptModelFromDomain(receipt)
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewConflictError("GRN number %s already exists", receipt.GRNNumber).
					WithDetail("grn_number", receipt.GRNNumber)
			}
			return err
		}

		if err := tx.Create(&model.Items).Error; err != nil {
			return err
		}

		// Save events to outbox within the same transaction
		if events := receipt.GetDomainEvents(); r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return asPersistenceError("create goods receipt", err)
	}

	// Without an outbox the caller publishes the pending events itself
	if r.outboxSaver != nil {
		receipt.ClearDomainEvents()
	}
	return nil
}

// UpdateStatus persists a transition: status, lifecycle stamps, updated_at and a bumped version.
// The write only lands if the stored version still equals receipt.Version.
func (r *GormGoodsReceiptRepository) UpdateStatus(ctx context.Context, receipt *receiving.GoodsReceipt) error {
	expected := receipt.Version
	next := expected + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GoodsReceiptModel{}).
			Where("id = ? AND version = ? AND deleted_at IS NULL", receipt.ID, expected).
			Updates(map[string]interface{}{
				"status":       receipt.Status,
				"verified_at":  receipt.VerifiedAt,
				"completed_at": receipt.CompletedAt,
				"cancelled_at": receipt.CancelledAt,
				"updated_at":   receipt.UpdatedAt,
				"version":      next,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.explainMissedUpdate(tx, receipt.ID)
		}

		if events := receipt.GetDomainEvents(); r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return asPersistenceError("update goods receipt status", err)
	}

	receipt.Version = next
	if r.outboxSaver != nil {
		receipt.ClearDomainEvents()
	}
	return nil
}

// SoftDelete stamps deleted_at on a Draft receipt. Items stay in place and stop
// counting towards received totals because the header is excluded.
func (r *GormGoodsReceiptRepository) SoftDelete(ctx context.Context, receipt *receiving.GoodsReceipt) error {
	if receipt.DeletedAt == nil {
		return shared.NewValidationError("receipt %s is not marked deleted", receipt.GRNNumber)
	}
	expected := receipt.Version
	next := expected + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GoodsReceiptModel{}).
			Where("id = ? AND version = ? AND status = ? AND deleted_at IS NULL",
				receipt.ID, expected, receiving.StatusDraft).
			Updates(map[string]interface{}{
				"deleted_at": receipt.DeletedAt,
				"updated_at": receipt.UpdatedAt,
				"version":    next,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.explainMissedUpdate(tx, receipt.ID)
		}
		return nil
	})
	if err != nil {
		return asPersistenceError("delete goods receipt", err)
	}

	receipt.Version = next
	return nil
}

// explainMissedUpdate turns a zero-row guarded update into NOT_FOUND or CONFLICT
func (r *GormGoodsReceiptRepository) explainMissedUpdate(tx *gorm.DB, id uuid.UUID) error {
	var current models.GoodsReceiptModel
	err := tx.Select("id", "status", "version", "deleted_at").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError("goods receipt", id)
	}
	if err != nil {
		return err
	}
	return shared.NewConflictError("The goods receipt has been modified by another user").
		WithDetail("reason", CodeConcurrentModification).
		WithDetail("status", current.Status.String()).
		WithDetail("version", current.Version)
}

// nextGRNNumber bumps the year's counter row and formats the result. The upsert
// holds the row lock until tx ends, so numbers are handed out one transaction at
// a time and a rolled back create gives its number back.
func nextGRNNumber(tx *gorm.DB, year int) (string, error) {
	var n int64
	err := tx.Raw(`INSERT INTO goods_receipt_number_sequences (receipt_year, last_value) VALUES (?, 1)
ON CONFLICT (receipt_year) DO UPDATE SET last_value = goods_receipt_number_sequences.last_value + 1
RETURNING last_value`, year).Scan(&n).Error
	if err != nil {
		return "", fmt.Errorf("allocate GRN number for %d: %w", year, err)
	}
	if n == 0 {
		return "", fmt.Errorf("allocate GRN number for %d: no value returned", year)
	}
	return receiving.FormatGRNNumber(year, n), nil
}

// applyFilter applies filter options to the query
func (r *GormGoodsReceiptRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	// Apply ordering with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, GoodsReceiptSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	if sortField == "grn_number" {
		// year, then width, so GRN-2026-100000 follows GRN-2026-99999
		query = query.Order("SUBSTR(grn_number, 5, 4) " + sortOrder).Order("LENGTH(grn_number) " + sortOrder)
	}
	// id breaks ties so pages are stable
	return query.Order(sortField + " " + sortOrder).Order("id " + sortOrder)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormGoodsReceiptRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if term := NormalizeSearchTerm(filter.Search); term != "" {
		pattern := likePattern(term)
		columns := searchColumns(filter.SearchFields)
		clauses := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, column := range columns {
			clauses[i] = "LOWER(" + column + `) LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		query = query.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "purchase_order_id":
			query = query.Where("purchase_order_id = ?", value)
		case "received_from":
			if t, ok := value.(time.Time); ok {
				query = query.Where("received_date >= ?", t)
			}
		case "received_to":
			if t, ok := value.(time.Time); ok {
				query = query.Where("received_date <= ?", t)
			}
		}
	}

	return query
}

// asPersistenceError keeps domain errors as they are and wraps anything else
func asPersistenceError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewPersistenceError(op, err)
}
