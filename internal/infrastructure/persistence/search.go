package persistence

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// NormalizeSearchTerm folds compatibility forms (full-width digits, ligatures)
// so "ＧＲＮ－２０２６" matches "GRN-2026", trims it and lowercases it
func NormalizeSearchTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(term)))
}

// likePattern builds a contains-pattern with LIKE wildcards escaped
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// searchColumns keeps whitelisted columns, falling back to the defaults when
// nothing usable was requested
func searchColumns(requested []string) []string {
	columns := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, field := range requested {
		field = strings.TrimSpace(field)
		if GoodsReceiptSearchFields[field] && !seen[field] {
			seen[field] = true
			columns = append(columns, field)
		}
	}
	if len(columns) == 0 {
		return DefaultGoodsReceiptSearchFields
	}
	return columns
}
