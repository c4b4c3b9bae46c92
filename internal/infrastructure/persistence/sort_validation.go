package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// GoodsReceiptSortFields contains allowed sort fields for goods receipts
var GoodsReceiptSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"grn_number":    true,
	"status":        true,
	"received_date": true,
	"verified_at":   true,
	"completed_at":  true,
}

// GoodsReceiptSearchFields are the columns a free-text search may target
var GoodsReceiptSearchFields = map[string]bool{
	"grn_number": true,
	"remarks":    true,
}

// DefaultGoodsReceiptSearchFields is used when the caller names none
var DefaultGoodsReceiptSearchFields = []string{"grn_number", "remarks"}
