package status

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockRegion takes a blocking, exclusive advisory write lock on a single
// byte at offset within f. No try-lock, no timeout.
func lockRegion(f *os.File, offset int64) error {
	lock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0, // io.SeekStart
		Start:  offset,
		Len:    1,
	}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &lock)
}

// unlockRegion releases a lock previously taken with lockRegion.
func unlockRegion(f *os.File, offset int64) error {
	lock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  offset,
		Len:    1,
	}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lock)
}

// lockBytesPerRecord is the number of dedicated lock bytes per record:
// one for LockTFC, one for LockHS.
const lockBytesPerRecord = 2

// lockAreaOffset returns the start of the lock-byte area: just past the
// header and the whole record array, so lock bytes never alias real
// record fields.
func (t *Table) lockAreaOffset() int64 {
	return int64(HeaderSize) + int64(t.noOfRecords)*int64(t.recordSize)
}

// recordLockOffset returns the byte offset of a record's lock byte for
// the given lock kind.
func (t *Table) recordLockOffset(pos int, lockKind int64) int64 {
	return t.lockAreaOffset() + int64(pos)*lockBytesPerRecord + lockKind
}

// LockTFC takes the counter lock for the host/directory at pos.
func (t *Table) LockTFC(pos int) error {
	return lockRegion(t.file, t.recordLockOffset(pos, LockTFC))
}

// UnlockTFC releases the counter lock for pos.
func (t *Table) UnlockTFC(pos int) error {
	return unlockRegion(t.file, t.recordLockOffset(pos, LockTFC))
}

// LockHS takes the host-status lock for pos.
func (t *Table) LockHS(pos int) error {
	return lockRegion(t.file, t.recordLockOffset(pos, LockHS))
}

// UnlockHS releases the host-status lock for pos.
func (t *Table) UnlockHS(pos int) error {
	return unlockRegion(t.file, t.recordLockOffset(pos, LockHS))
}
