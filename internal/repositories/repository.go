package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates the per-entity repositories behind one facade, which
// is how services consume the persistence layer.
type Repository interface {
	Progress() ProgressRepository
	Session() SessionRepository
	Achievement() AchievementRepository
	Course() CourseRepository
	Report() ReportRepository
}

// ErrVersionConflict is returned by version-checked saves when the row was
// modified between load and save. Callers reload and retry.
var ErrVersionConflict = errors.New("row was modified concurrently")

// IsNotFoundError checks for the driver-level "no rows" condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError checks for unique-index violations. Requires the gorm
// TranslateError option (see pkg.InitDatabase).
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsVersionConflict checks for optimistic-lock misses.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
