// Package store provides persistence for KeyHours entities.
package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/keyhours/internal/core/domain"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("entity already exists")

	// ErrForeignKey is returned when a foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key constraint violated")

	// ErrConstraint is returned for CHECK constraint failures that do not
	// map onto a domain rule.
	ErrConstraint = errors.New("constraint violated")

	// ErrConnectionFailed is returned when database connection fails.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when a stored value cannot be decoded.
	ErrInvalidData = errors.New("invalid data format")

	// ErrTxFailed is returned when a transaction operation fails.
	ErrTxFailed = errors.New("transaction failed")
)

// capacityConstraint is the name of the CHECK constraint guarding
// projects.current_participants.
const capacityConstraint = "project_capacity"

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "CreateProject")
	Entity  string // Entity type (e.g., "project", "application")
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// DuplicateColumn reports whether err is a unique violation on column.
func DuplicateColumn(err error, column string) bool {
	return errors.Is(err, ErrDuplicate) && strings.Contains(err.Error(), "."+column)
}

// IsNotFound reports whether err is a not-found store error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// wrapErr classifies a driver error. Constraint failures become sentinel
// errors; the capacity CHECK becomes a domain validation error on
// max_participants.
func wrapErr(op, entity string, id int64, err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		switch sqlErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return NewStoreError(op, entity, idString(id), entity+" already exists ("+sqlErr.Error()+")", ErrDuplicate)
		case sqlite3.ErrConstraintForeignKey:
			return NewStoreError(op, entity, idString(id), "referenced entity does not exist", ErrForeignKey)
		case sqlite3.ErrConstraintCheck:
			if strings.Contains(sqlErr.Error(), capacityConstraint) {
				return NewStoreError(op, entity, idString(id), "project is at capacity",
					domain.NewValidationError("max_participants", domain.ErrCapacityExceeded))
			}
			return NewStoreError(op, entity, idString(id), sqlErr.Error(), ErrConstraint)
		}
	}
	return NewStoreError(op, entity, idString(id), err.Error(), err)
}
