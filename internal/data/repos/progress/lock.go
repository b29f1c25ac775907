package progress

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func isPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres"
}

// forUpdate adds a row lock on postgres. Other dialects rely on the keyed lock and
// the surrounding transaction.
func forUpdate(q *gorm.DB) *gorm.DB {
	if !isPostgres(q) {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// skipLocked is forUpdate with SKIP LOCKED for queue claims.
func skipLocked(q *gorm.DB) *gorm.DB {
	if !isPostgres(q) {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
