package postgres

import (
	"gorm.io/gorm"
)

// SharedHelpers carries query fragments used by more than one repository.
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// sortable columns across the service's list endpoints
var allowedSortColumns = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"started_at":       true,
	"last_accessed_at": true,
	"overall_progress": true,
	"earned_at":        true,
	"week_start":       true,
}

// ApplyPaginationAndSort falls back to newest-first, 20 rows per page, hard
// cap of 100. Sort input is checked against an allowlist since it ends up in
// SQL.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}
