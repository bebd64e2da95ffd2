package status

import "errors"

// Failure modes.
var (
	// ErrWrongVersion is returned when a table's header version does not
	// match CurrentVersion.
	ErrWrongVersion = errors.New("status: wrong table version")
	// ErrWrongTable is returned when a table's record count is <= 0, or
	// when a position outside [0, no_of_records) is requested.
	ErrWrongTable = errors.New("status: wrong table (invalid record count or position)")
	// ErrStale is returned by Check when the header's first word carries
	// the Stale marker: the caller must Detach and re-Attach.
	ErrStale = errors.New("status: table generation is stale, re-attach required")
	// ErrInvalidPosition marks a position that became invalid across a
	// generational swap (e.g. the host disappeared from the new table).
	ErrInvalidPosition = errors.New("status: position invalid in current generation")
)
