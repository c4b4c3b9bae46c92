package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/shopspring/decimal"
)

// GoodsReceiptModel is the persistence model for the GoodsReceipt aggregate root.
// Soft-deleted rows keep their grn_number reserved.
type GoodsReceiptModel struct {
	AggregateModel
	GRNNumber       string                       `gorm:"column:grn_number;type:varchar(50);not null;uniqueIndex:idx_goods_receipts_grn_number"`
	PurchaseOrderID uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Status          receiving.GoodsReceiptStatus `gorm:"type:varchar(20);not null;default:'Draft';index"`
	ReceivedDate    time.Time                    `gorm:"not null;index"`
	Remarks         string                       `gorm:"type:text"`
	VerifiedAt      *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	DeletedAt       *time.Time             `gorm:"index"`
	Items           []GoodsReceiptItemModel `gorm:"foreignKey:GoodsReceiptID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (GoodsReceiptModel) TableName() string {
	return "goods_receipts"
}

// ToDomain converts the persistence model to a domain GoodsReceipt aggregate
func (m *GoodsReceiptModel) ToDomain() *receiving.GoodsReceipt {
	receipt := &receiving.GoodsReceipt{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		GRNNumber:         m.GRNNumber,
		PurchaseOrderID:   m.PurchaseOrderID,
		Status:            m.Status,
		ReceivedDate:      m.ReceivedDate,
		Remarks:           m.Remarks,
		VerifiedAt:        m.VerifiedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		DeletedAt:         m.DeletedAt,
		Items:             make([]receiving.GoodsReceiptItem, len(m.Items)),
	}
	for i := range m.Items {
		receipt.Items[i] = *m.Items[i].ToDomain()
	}
	return receipt
}

// FromDomain populates the persistence model from a domain GoodsReceipt
func (m *GoodsReceiptModel) FromDomain(g *receiving.GoodsReceipt) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.GRNNumber = g.GRNNumber
	m.PurchaseOrderID = g.PurchaseOrderID
	m.Status = g.Status
	m.ReceivedDate = g.ReceivedDate
	m.Remarks = g.Remarks
	m.VerifiedAt = g.VerifiedAt
	m.CompletedAt = g.CompletedAt
	m.CancelledAt = g.CancelledAt
	m.DeletedAt = g.DeletedAt
	m.Items = make([]GoodsReceiptItemModel, len(g.Items))
	for i := range g.Items {
		m.Items[i] = *GoodsReceiptItemModelFromDomain(&g.Items[i])
	}
}

// GoodsReceiptModelFromDomain creates a new persistence model from a domain GoodsReceipt
func GoodsReceiptModelFromDomain(g *receiving.GoodsReceipt) *GoodsReceiptModel {
	m := &GoodsReceiptModel{}
	m.FromDomain(g)
	return m
}

// GoodsReceiptItemModel is the persistence model for the GoodsReceiptItem entity
type GoodsReceiptItemModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GoodsReceiptID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	PurchaseOrderItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReceivedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AcceptedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RejectedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BatchNumber         *string         `gorm:"type:varchar(100)"`
	ExpiryDate          *time.Time      `gorm:"type:date"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GoodsReceiptItemModel) TableName() string {
	return "goods_receipt_items"
}

// ToDomain converts the persistence model to a domain GoodsReceiptItem
func (m *GoodsReceiptItemModel) ToDomain() *receiving.GoodsReceiptItem {
	return &receiving.GoodsReceiptItem{
		ID:                  m.ID,
		GoodsReceiptID:      m.GoodsReceiptID,
		PurchaseOrderItemID: m.PurchaseOrderItemID,
		ReceivedQuantity:    m.ReceivedQuantity,
		AcceptedQuantity:    m.AcceptedQuantity,
		RejectedQuantity:    m.RejectedQuantity,
		BatchNumber:         m.BatchNumber,
		ExpiryDate:          m.ExpiryDate,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain GoodsReceiptItem
func (m *GoodsReceiptItemModel) FromDomain(i *receiving.GoodsReceiptItem) {
	m.ID = i.ID
	m.GoodsReceiptID = i.GoodsReceiptID
	m.PurchaseOrderItemID = i.PurchaseOrderItemID
	m.ReceivedQuantity = i.ReceivedQuantity
	m.AcceptedQuantity = i.AcceptedQuantity
	m.RejectedQuantity = i.RejectedQuantity
	m.BatchNumber = i.BatchNumber
	m.ExpiryDate = i.ExpiryDate
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}

// GoodsReceiptItemModelFromDomain creates a new persistence model from a domain GoodsReceiptItem
func GoodsReceiptItemModelFromDomain(i *receiving.GoodsReceiptItem) *GoodsReceiptItemModel {
	m := &GoodsReceiptItemModel{}
	m.FromDomain(i)
	return m
}

// GoodsReceiptNumberSequenceModel is the per-year GRN counter. last_value is the
// suffix of the newest number handed out for receipt_year.
type GoodsReceiptNumberSequenceModel struct {
	ReceiptYear int   `gorm:"column:receipt_year;primaryKey;autoIncrement:false"`
	LastValue   int64 `gorm:"column:last_value;not null"`
}

// TableName returns the table name for GORM
func (GoodsReceiptNumberSequenceModel) TableName() string {
	return "goods_receipt_number_sequences"
}
