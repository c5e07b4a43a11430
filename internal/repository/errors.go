// Package repository is the table store of the site: one interface per entity
// and its SQLite implementation.
package repository

import (
	"errors"
	"strings"

	"github.com/Zachkp/folio/internal/collection"
)

var (
	// ErrNotFound is returned when a row does not exist. It is the same value
	// collection stores check for, so deleting a missing row counts as deleted.
	ErrNotFound = collection.ErrNotFound

	ErrAlreadyExists = errors.New("already exists")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
