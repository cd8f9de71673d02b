package repository

import (
	"errors"

	"sit/internal/middleware"

	"gorm.io/gorm"
)

// maxCASAttempts bounds the retry loop on optimistic-concurrency conflicts.
const maxCASAttempts = 3

// errStaleVersion signals that another writer updated the row between our
// read and our conditional write.
var errStaleVersion = errors.New("stale document version")

// casUpdate writes updates to the row with the given id only if its version
// column still matches the version we read. The version is bumped as part of
// the same statement, so a lost update can never be silently overwritten.
func casUpdate(db *gorm.DB, model any, id, version uint, updates map[string]any) error {
	updates["version"] = version + 1
	res := db.Model(model).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleVersion
	}
	return nil
}

// recordRetry tracks a CAS retry in Prometheus.
func recordRetry(entity string, exhausted bool) {
	outcome := "retried"
	if exhausted {
		outcome = "exhausted"
	}
	middleware.ToggleRetries.WithLabelValues(entity, outcome).Inc()
}
