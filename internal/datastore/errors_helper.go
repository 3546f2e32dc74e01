package datastore

import (
	"github.com/camf-project/camf-go/internal/errors"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// translateError maps low-level database errors onto the engine's error
// taxonomy: record absence becomes a not-found error, constraint breaches
// become conflict errors the caller can show as a naming conflict, and
// everything else is wrapped as a database error.
func translateError(err error, operation, kind string, id any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("datastore", kind, id)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		constraint := "constraint"
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			constraint = "unique"
		case sqlite3.ErrConstraintCheck:
			constraint = "check"
		case sqlite3.ErrConstraintForeignKey:
			constraint = "foreign_key"
		}
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConflict).
			Context("operation", operation).
			Context("kind", kind).
			Context("id", id).
			Context("constraint", constraint).
			Build()
	}

	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("kind", kind).
		Context("id", id).
		Build()
}
