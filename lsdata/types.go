// Package lsdata implements the per-directory retrieve-list store: a
// persistent list of remote file names with size, mtime and
// retrieved-flag, with format-version migration and growth-by-step
// resize.
//
// The on-disk header/record discipline mirrors the status package's
// word-offset header, with the same hand-rolled encoding/binary codec
// as status/codec.go.
package lsdata

import "time"

// Step is the number of entries the retrieve list grows by at a time.
const Step = 256

// CurrentRLVersion is the format version this package writes. Files
// written by an older version are migrated in place on open.
const CurrentRLVersion byte = 2

// legacyRLVersion is the one prior on-disk shape this package knows how
// to recognise by its exact length formula.
const legacyRLVersion byte = 1

// MaxFileNameLength bounds Entry.FileName, matching the fixed-record
// discipline used throughout status.FSARecord/FRARecord.
const MaxFileNameLength = 256

// Entry is one remote file known to a directory's retrieve list.
type Entry struct {
	FileName  [MaxFileNameLength]byte
	FileMtime int64 // remote mtime, unix seconds
	GotDate   int64 // unix seconds this entry was learned
	Size      int64
	Retrieved bool
	InList    bool
	ExtraData [32]byte // optional protocol-specific payload
}

// Name returns the entry's file name as a string.
func (e *Entry) Name() string {
	n := 0
	for n < len(e.FileName) && e.FileName[n] != 0 {
		n++
	}
	return string(e.FileName[:n])
}

// SetName stores name into FileName, truncating to MaxFileNameLength-1.
func (e *Entry) SetName(name string) {
	for i := range e.FileName {
		e.FileName[i] = 0
	}
	copy(e.FileName[:MaxFileNameLength-1], name)
}

// Mtime returns FileMtime as a time.Time.
func (e *Entry) Mtime() time.Time { return time.Unix(e.FileMtime, 0) }
