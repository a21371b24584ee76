package domain

import "errors"

// Error kinds surfaced across the harmonisation API. Callers classify
// failures with errors.Is; wrapped messages carry the detail.
var (
	// ErrInvalidConfig marks a malformed or incomplete run submission.
	ErrInvalidConfig = errors.New("invalid run configuration")

	// ErrNotFound marks an unknown run, task, mapping, schema or data type.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName marks a schema name collision.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrInvalidColumn marks a column definition that references an
	// unknown data type or carries a malformed parameter set.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrInvalidQuery marks an empty or malformed entity search query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExternalCall marks a failed retrieve/download/extract/resolver
	// call against an external collaborator.
	ErrExternalCall = errors.New("external call failed")

	// ErrInternalInconsistency marks a fatal construction-time defect,
	// such as a cycle in the task dependency graph. Run construction
	// aborts before any task executes.
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
