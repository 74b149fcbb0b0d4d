package frontend

import (
	"errors"

	"github.com/hupe1980/chromaffi/internal/sysdb"
)

var (
	// ErrNotFound is returned for missing tenants, databases and collections.
	ErrNotFound = sysdb.ErrNotFound

	// ErrConflict is returned when creating an existing database or collection.
	ErrConflict = sysdb.ErrConflict

	// ErrValidation is returned for requests the engine refuses to execute.
	ErrValidation = errors.New("validation error")
)
