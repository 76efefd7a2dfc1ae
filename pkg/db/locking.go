package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate adds a FOR UPDATE clause on postgres. The sqlite driver used
// by repository tests has no row locks, so the clause is skipped there and
// the surrounding transaction still serializes writers.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return tx
	}
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
