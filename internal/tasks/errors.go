package tasks

import "errors"

// Domain errors for task store operations. Database failures are translated
// onto these through repository.MapError at every repo call site.
var (
	// ErrGroupNotFound signals a status transition that matched no
	// in-progress rows. Complete and Fail absorb it with a warning.
	ErrGroupNotFound = errors.New("task group not found")

	// ErrDuplicate is the translation of the store's uniqueness constraint
	// on (npj, type, date).
	ErrDuplicate = errors.New("notification already exists")
)
