// Package sdf reads and writes SDF self-describing simulation output files,
// the block-structured format produced by the EPOCH particle-in-cell code.
package sdf

import "errors"

// Common errors
var (
	ErrNotSDF      = errors.New("not an SDF file")
	ErrUnsupported = errors.New("unsupported feature")
	ErrClosed      = errors.New("file is closed")
)
