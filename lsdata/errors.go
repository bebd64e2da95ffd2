package lsdata

import "errors"

// Failure modes.
var (
	// ErrCorrupt is returned when a ls-data file is shorter than its
	// declared header or entry region.
	ErrCorrupt = errors.New("lsdata: corrupt retrieve-list file")
	// ErrNotAttached is returned by operations that require an open
	// Store.
	ErrNotAttached = errors.New("lsdata: not attached")
	// ErrOutOfRange is returned when an entry index is outside
	// [0, NoOfListedFiles).
	ErrOutOfRange = errors.New("lsdata: entry index out of range")
)
