// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"math"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
// Callers validate page and limit first; the defaults here only guard
// against zero values.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return options.Find().SetLimit(limit).SetSkip(Skip(page, limit))
}

// Skip returns the number of documents before page, saturating at
// math.MaxInt64 instead of overflowing.
func Skip(page, limit int64) int64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if !PageInRange(page, limit) {
		return math.MaxInt64
	}
	return (page - 1) * limit
}

// PageInRange reports whether the offset of page fits in an int64.
func PageInRange(page, limit int64) bool {
	if page <= 1 || limit <= 0 {
		return true
	}
	return page-1 <= math.MaxInt64/limit
}

// TotalPages returns ceil(total / limit).
func TotalPages(total, limit int64) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
