// Package confirm implements the confirmation/reply correlator: a
// persistent, memory-mapped queue of pending outbound-transfer
// confirmations, fed by a command FIFO and an append-only mail file,
// with time-based expiry of unmatched entries.
//
// The on-disk discipline mirrors status and lsdata: a fixed header
// followed by a dense, grow-by-step record array, encoded with
// encoding/binary rather than a serialization library (see DESIGN.md).
package confirm

import "github.com/google/uuid"

// Step is the number of entries the queue grows by at a time, matching
// lsdata's growth policy.
const Step = 64

// CurrentVersion is the queue file format version this package writes.
const CurrentVersion byte = 1

// MaxFileNameLength and MaxAliasLength bound the fixed string fields,
// matching the fixed-record discipline used throughout status.FSARecord.
const (
	MaxFileNameLength = 256
	MaxAliasLength    = 40
	MaxPrivateIDLength = 64
)

// ConfirmationType classifies how a queue entry was (or was not) resolved.
type ConfirmationType int32

// Confirmation outcomes.
const (
	Pending ConfirmationType = iota
	Ack
	Nack
	TimedUp
)

// Entry is one pending confirmation: {de_mail_privat_id, file_name,
// alias_name, log_time, file_size, jid, confirmation_type}, the DQB
// queue record shape.
type Entry struct {
	DeMailPrivateID [MaxPrivateIDLength]byte
	FileName        [MaxFileNameLength]byte
	AliasName       [MaxAliasLength]byte
	LogTime         int64
	FileSize        int64
	JobID           int32
	Type            ConfirmationType
}

// NewPrivateID mints a collision-safe companion token for a queue entry.
func NewPrivateID() string {
	return uuid.NewString()
}

func setFixedString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst[:len(dst)-1], s)
}

func fixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// SetDeMailPrivateID stores id into the entry's fixed field, truncating if
// necessary.
func (e *Entry) SetDeMailPrivateID(id string) { setFixedString(e.DeMailPrivateID[:], id) }

// DeMailPrivateIDString returns the entry's private-id field as a string.
func (e *Entry) DeMailPrivateIDString() string { return fixedString(e.DeMailPrivateID[:]) }

// SetFileName stores name into the entry's fixed field, truncating if
// necessary.
func (e *Entry) SetFileName(name string) { setFixedString(e.FileName[:], name) }

// FileNameString returns the entry's file name field as a string.
func (e *Entry) FileNameString() string { return fixedString(e.FileName[:]) }

// SetAliasName stores alias into the entry's fixed field, truncating if
// necessary.
func (e *Entry) SetAliasName(alias string) { setFixedString(e.AliasName[:], alias) }

// AliasNameString returns the entry's alias field as a string.
func (e *Entry) AliasNameString() string { return fixedString(e.AliasName[:]) }
