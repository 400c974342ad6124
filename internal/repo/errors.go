package repo

import "errors"

// Common repository errors
var (
	// ErrValidation indicates the record was rejected before any
	// mutation happened (missing name, sale without items).
	ErrValidation = errors.New("record validation failed")

	// ErrNotFound indicates an update or delete referenced an unknown
	// id. This is an expected, caller-checkable condition.
	ErrNotFound = errors.New("record not found")

	// ErrProtectedRecord blocks deletion of sentinel records such as
	// the "all items" category.
	ErrProtectedRecord = errors.New("record is protected")
)
