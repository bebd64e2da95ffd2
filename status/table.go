package status

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/mmap"
)

// Kind distinguishes the three table flavours sharing this package's
// header/lock/attach machinery.
type Kind int

// Table kinds.
const (
	KindFSA Kind = iota
	KindFRA
	KindMDB
)

func (k Kind) recordSize() int {
	switch k {
	case KindFSA:
		return FSARecordSize
	case KindFRA:
		return FRARecordSize
	default:
		return MDBRecordSize
	}
}

// Table is an open, memory-mapped status table: a Header followed by a
// dense record array and a trailing lock-byte area (see lock.go).
type Table struct {
	mu          sync.RWMutex
	kind        Kind
	path        string
	file        *os.File
	data        []byte
	noOfRecords int
	recordSize  int
	pageSize    int
}

func pageSize() int {
	return os.Getpagesize()
}

// totalSize returns the full backing-file size for n records of this
// table's kind.
func (k Kind) totalSize(n int) int64 {
	return int64(HeaderSize) + int64(n)*int64(k.recordSize()) + int64(n)*lockBytesPerRecord
}

// Create makes a brand-new table file at path with room for n records,
// and opens it. It is an error for path to already exist; NewManager
// is the idempotent form used at daemon startup.
func Create(path string, kind Kind, n int) (*Table, error) {
	if n <= 0 {
		return nil, ErrWrongTable
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("status: create %s: %w", path, err)
	}
	size := kind.totalSize(n)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	t := &Table{kind: kind, path: path, file: f, noOfRecords: n, recordSize: kind.recordSize(), pageSize: pageSize()}
	if err := t.mapFile(int(size)); err != nil {
		f.Close()
		return nil, err
	}
	h := Header{NoOfRecords: int32(n), Version: CurrentVersion, PageSize: int32(t.pageSize)}
	copy(t.data[:HeaderSize], encodeHeader(h))
	fs.Debugf(path, "status: created table kind=%d records=%d size=%d", kind, n, size)
	return t, nil
}

// Open opens an existing table file, validating its header.
func Open(path string, kind Kind) (*Table, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("status: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	t := &Table{kind: kind, path: path, file: f, recordSize: kind.recordSize(), pageSize: pageSize()}
	if err := t.mapFile(int(fi.Size())); err != nil {
		f.Close()
		return nil, err
	}
	h, err := decodeHeader(t.data)
	if err != nil {
		t.Close()
		return nil, err
	}
	if h.Version != CurrentVersion {
		t.Close()
		return nil, ErrWrongVersion
	}
	if h.NoOfRecords <= 0 {
		t.Close()
		return nil, ErrWrongTable
	}
	t.noOfRecords = int(h.NoOfRecords)
	return t, nil
}

func (t *Table) mapFile(size int) error {
	data, err := mmap.FileMap(t.file, size)
	if err != nil {
		return err
	}
	t.data = data
	return nil
}

// Close unmaps and closes the table.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.data != nil {
		err = mmap.FileUnmap(t.data)
		t.data = nil
	}
	if cerr := t.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// NoOfRecords returns the number of records in the table.
func (t *Table) NoOfRecords() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.noOfRecords
}

// Path returns the table's backing file path.
func (t *Table) Path() string {
	return t.path
}

// Check reads the header's first word and returns ErrStale if the table
// has been superseded by a generational swap.
func (t *Table) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if firstWord(t.data) == Stale {
		return ErrStale
	}
	return nil
}

// MarkStale writes the STALE marker into the header, telling every
// attached reader to detach and re-attach.
func (t *Table) MarkStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	markStale(t.data)
}

func (t *Table) recordOffset(pos int) (int64, error) {
	if pos < 0 || pos >= t.noOfRecords {
		return 0, ErrWrongTable
	}
	return int64(HeaderSize) + int64(pos)*int64(t.recordSize), nil
}

// ReadFSA returns a copy of the FSARecord at pos.
func (t *Table) ReadFSA(pos int) (FSARecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return FSARecord{}, err
	}
	return decodeFSA(t.data[off : off+int64(t.recordSize)])
}

// WriteFSA overwrites the record at pos. Callers mutating
// total_file_counter/size or host_status must hold the matching lock
// first (LockTFC/LockHS).
func (t *Table) WriteFSA(pos int, r FSARecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return err
	}
	copy(t.data[off:off+int64(t.recordSize)], encodeRecord(r, t.recordSize))
	return nil
}

// ReadFRA returns a copy of the FRARecord at pos.
func (t *Table) ReadFRA(pos int) (FRARecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return FRARecord{}, err
	}
	return decodeFRA(t.data[off : off+int64(t.recordSize)])
}

// WriteFRA overwrites the record at pos.
func (t *Table) WriteFRA(pos int, r FRARecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return err
	}
	copy(t.data[off:off+int64(t.recordSize)], encodeRecord(r, t.recordSize))
	return nil
}

// ReadMDB returns a copy of the MDBRecord at pos.
func (t *Table) ReadMDB(pos int) (MDBRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return MDBRecord{}, err
	}
	return decodeMDB(t.data[off : off+int64(t.recordSize)])
}

// WriteMDB overwrites the record at pos.
func (t *Table) WriteMDB(pos int, r MDBRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	off, err := t.recordOffset(pos)
	if err != nil {
		return err
	}
	copy(t.data[off:off+int64(t.recordSize)], encodeRecord(r, t.recordSize))
	return nil
}

// UpdateTFC applies the counter update under LockTFC:
// total_file_counter -= n, total_file_size -= bytes, file_counter_done
// += n, bytes_send += bytes, last_connection = now. If the decrement
// would drive a counter negative it is clamped to 0 and a debug log is
// emitted rather than returning an error; the caller keeps going.
func (t *Table) UpdateTFC(pos int, n int32, bytes int64, now time.Time) error {
	if err := t.LockTFC(pos); err != nil {
		return err
	}
	defer t.UnlockTFC(pos)

	r, err := t.ReadFSA(pos)
	if err != nil {
		return err
	}

	r.TotalFileCounter -= n
	if r.TotalFileCounter < 0 {
		fs.Debugf(t.path, "status: total_file_counter went negative at pos %d, clamping to 0", pos)
		r.TotalFileCounter = 0
	}
	r.TotalFileSize -= bytes
	if r.TotalFileSize < 0 {
		fs.Debugf(t.path, "status: total_file_size went negative at pos %d, clamping to 0", pos)
		r.TotalFileSize = 0
	}
	if r.TotalFileCounter == 0 {
		r.TotalFileSize = 0
	}
	r.FileCounterDone += int64(n)
	r.BytesSend += bytes
	r.LastConnection = now.Unix()

	return t.WriteFSA(pos, r)
}

// UpdateHostStatus mutates host_status under LockHS via fn, which
// receives the current status bitmask and returns the new one.
func (t *Table) UpdateHostStatus(pos int, fn func(status uint32) uint32) error {
	if err := t.LockHS(pos); err != nil {
		return err
	}
	defer t.UnlockHS(pos)

	r, err := t.ReadFSA(pos)
	if err != nil {
		return err
	}
	r.HostStatus = fn(r.HostStatus)
	return t.WriteFSA(pos, r)
}
