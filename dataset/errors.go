package dataset

import "errors"

// Common errors
var (
	// ErrClosed is returned when reading through a dataset whose backing
	// store has been released.
	ErrClosed = errors.New("dataset is closed")

	// ErrNotFound is returned when a requested variable or coordinate does
	// not exist under either its raw or canonical name.
	ErrNotFound = errors.New("variable not found")

	// ErrAmbiguous is returned when a requested name canonicalizes onto more
	// than one block.
	ErrAmbiguous = errors.New("ambiguous variable name")

	// ErrNoAxisBinding is returned when a variable's extent matches neither
	// its grid nor the grid's midpoint variant in some dimension.
	ErrNoAxisBinding = errors.New("no axis binding")

	// ErrJobIDMismatch is returned when files from different runs are
	// combined on a single time axis.
	ErrJobIDMismatch = errors.New("mismatching job ids")
)
