package confirm

import (
	"fmt"
	"os"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/mmap"
)

// Queue is the open, memory-mapped confirmation queue. New entries are
// appended at the tail as they arrive from the command FIFO;
// `check_line` matches against the head, and timed-up entries are removed
// in place by compaction, preserving FIFO order for everything else.
type Queue struct {
	path   string
	file   *os.File
	data   []byte
	header Header
}

// Open attaches the queue file at path, creating and initialising it if it
// does not yet exist.
func Open(path string) (*Queue, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("confirm: open %s: %w", path, err)
	}
	q := &Queue{path: path, file: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		if err := q.initialize(); err != nil {
			f.Close()
			return nil, err
		}
		return q, nil
	}
	if err := q.mapExisting(int(fi.Size())); err != nil {
		f.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) initialize() error {
	size := requiredSize(0)
	data, err := mmap.FileMap(q.file, int(size))
	if err != nil {
		return err
	}
	q.data = data
	q.header = Header{NoOfQueued: 0, Version: CurrentVersion, CreationTime: nowUnix()}
	copy(q.data[:HeaderSize], encodeHeader(q.header))
	return nil
}

func (q *Queue) mapExisting(size int) error {
	data, err := mmap.FileMap(q.file, size)
	if err != nil {
		return err
	}
	q.data = data
	h, err := decodeHeader(q.data)
	if err != nil {
		return err
	}
	q.header = h
	return nil
}

// Len returns the number of currently queued entries.
func (q *Queue) Len() int { return int(q.header.NoOfQueued) }

func (q *Queue) entryOffset(i int) (int, error) {
	if i < 0 || i >= int(q.header.NoOfQueued) {
		return 0, ErrCorrupt
	}
	return HeaderSize + i*EntrySize, nil
}

// Get returns a copy of the entry at index i, 0 being the head of the
// queue (the oldest still-pending confirmation).
func (q *Queue) Get(i int) (Entry, error) {
	off, err := q.entryOffset(i)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(q.data[off : off+EntrySize])
}

func (q *Queue) set(i int, e Entry) error {
	off, err := q.entryOffset(i)
	if err != nil {
		return err
	}
	copy(q.data[off:off+EntrySize], encodeEntry(e))
	return nil
}

// Append adds e at the tail, growing the file by Step entries first if
// needed.
func (q *Queue) Append(e Entry) (int, error) {
	n := int(q.header.NoOfQueued)
	if err := q.ensureCapacity(n + 1); err != nil {
		return 0, err
	}
	off := HeaderSize + n*EntrySize
	copy(q.data[off:off+EntrySize], encodeEntry(e))
	q.header.NoOfQueued = int32(n + 1)
	copy(q.data[:HeaderSize], encodeHeader(q.header))
	return n, nil
}

func (q *Queue) ensureCapacity(n int) error {
	fi, err := q.file.Stat()
	if err != nil {
		return err
	}
	required := requiredSize(n)
	if fi.Size() >= required {
		return nil
	}
	if err := mmap.FileUnmap(q.data); err != nil {
		return err
	}
	data, err := mmap.FileMap(q.file, int(required))
	if err != nil {
		return err
	}
	q.data = data
	fs.Debugf(q.path, "confirm: grew queue to %d entries (%d bytes)", stepCountFor(n), required)
	return nil
}

// removeAt deletes the entry at index i by shifting every later entry down
// by one, preserving FIFO order.
func (q *Queue) removeAt(i int) error {
	n := int(q.header.NoOfQueued)
	if i < 0 || i >= n {
		return ErrCorrupt
	}
	for j := i; j < n-1; j++ {
		e, err := q.Get(j + 1)
		if err != nil {
			return err
		}
		if err := q.set(j, e); err != nil {
			return err
		}
	}
	q.header.NoOfQueued = int32(n - 1)
	copy(q.data[:HeaderSize], encodeHeader(q.header))
	return nil
}

// MatchHead implements `check_line` predicate: it compares
// line against the head entry's file name and alias, and on a match
// removes the head and returns (true, removed-entry).
func (q *Queue) MatchHead(fileName, aliasName string, ackType ConfirmationType) (bool, Entry, error) {
	if q.Len() == 0 {
		return false, Entry{}, nil
	}
	head, err := q.Get(0)
	if err != nil {
		return false, Entry{}, err
	}
	if head.FileNameString() != fileName || head.AliasNameString() != aliasName {
		return false, Entry{}, nil
	}
	head.Type = ackType
	if err := q.removeAt(0); err != nil {
		return false, Entry{}, err
	}
	return true, head, nil
}

// RemoveExpired walks the queue and removes every entry whose age has
// reached timeUp, returning the removed entries in original order so the
// caller can log one CL_TIMEUP record per entry.
func (q *Queue) RemoveExpired(now time.Time, timeUp time.Duration) ([]Entry, error) {
	var expired []Entry
	i := 0
	for i < q.Len() {
		e, err := q.Get(i)
		if err != nil {
			return expired, err
		}
		age := now.Sub(time.Unix(e.LogTime, 0))
		if age >= timeUp {
			e.Type = TimedUp
			expired = append(expired, e)
			if err := q.removeAt(i); err != nil {
				return expired, err
			}
			continue // entry i+1 just shifted down into i
		}
		i++
	}
	return expired, nil
}

// Close unmaps and closes the queue file.
func (q *Queue) Close() error {
	var err error
	if q.data != nil {
		err = mmap.FileUnmap(q.data)
		q.data = nil
	}
	if cerr := q.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
