package lsdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/mmap"
)

// Store is one directory's open, memory-mapped retrieve list. A single
// retrieve worker owns a Store at a time; there is no cross-worker
// concurrency on one directory's list.
type Store struct {
	dirAlias string
	path     string
	file     *os.File
	data     []byte
	header   Header
}

// pathFor returns the conventional ls-data path for a directory alias
// under workDir.
func pathFor(workDir, dirAlias string) string {
	return filepath.Join(workDir, "file_dir", "incoming", "ls_data", dirAlias)
}

// Attach opens (creating if needed and create is true) the ls-data file
// for dirAlias under workDir, migrating it in place if its stored version
// predates CurrentRLVersion.
func Attach(workDir, dirAlias string, create bool) (*Store, error) {
	path := pathFor(workDir, dirAlias)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("lsdata: mkdir: %w", err)
	}

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("lsdata: attach open %s: %w", path, err)
	}

	s := &Store{dirAlias: dirAlias, path: path, file: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size() == 0 {
		if err := s.initialize(); err != nil {
			f.Close()
			return nil, err
		}
		fs.Debugf(dirAlias, "lsdata: initialised new retrieve list at %s", path)
		return s, nil
	}

	if err := s.mapExisting(int(fi.Size())); err != nil {
		f.Close()
		return nil, err
	}

	if s.header.Version != CurrentRLVersion {
		if err := s.migrate(); err != nil {
			s.Detach(false)
			return nil, fmt.Errorf("lsdata: migrate %s: %w", path, err)
		}
	}

	// The file must be at least as large as its claimed entry count
	// demands; grow it back if something truncated it short.
	if err := s.ensureCapacity(int(s.header.NoOfListedFiles)); err != nil {
		s.Detach(false)
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	size := requiredSize(0)
	data, err := mmap.FileMap(s.file, int(size))
	if err != nil {
		return err
	}
	s.data = data
	s.header = Header{NoOfListedFiles: 0, Version: CurrentRLVersion, CreationTime: nowUnix()}
	copy(s.data[:HeaderSize], encodeHeader(s.header))
	return nil
}

func (s *Store) mapExisting(size int) error {
	data, err := mmap.FileMap(s.file, size)
	if err != nil {
		return err
	}
	s.data = data
	h, err := decodeHeader(s.data)
	if err != nil {
		return err
	}
	s.header = h
	return nil
}

// NoOfListedFiles returns the current entry count.
func (s *Store) NoOfListedFiles() int {
	return int(s.header.NoOfListedFiles)
}

func (s *Store) entryOffset(i int) (int, error) {
	if i < 0 || i >= int(s.header.NoOfListedFiles) {
		return 0, ErrOutOfRange
	}
	return HeaderSize + i*EntrySize, nil
}

// Get returns a copy of the entry at index i.
func (s *Store) Get(i int) (Entry, error) {
	if s.data == nil {
		return Entry{}, ErrNotAttached
	}
	off, err := s.entryOffset(i)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(s.data[off : off+EntrySize])
}

// Set overwrites the entry at index i.
func (s *Store) Set(i int, e Entry) error {
	if s.data == nil {
		return ErrNotAttached
	}
	off, err := s.entryOffset(i)
	if err != nil {
		return err
	}
	copy(s.data[off:off+EntrySize], encodeEntry(e))
	return nil
}

// Append adds e as a new last entry, growing the file by Step entries
// first if the current allocation has no room.
func (s *Store) Append(e Entry) (int, error) {
	if s.data == nil {
		return 0, ErrNotAttached
	}
	n := int(s.header.NoOfListedFiles)
	if err := s.ensureCapacity(n + 1); err != nil {
		return 0, err
	}
	off := HeaderSize + n*EntrySize
	copy(s.data[off:off+EntrySize], encodeEntry(e))
	s.header.NoOfListedFiles = int32(n + 1)
	copy(s.data[:HeaderSize], encodeHeader(s.header))
	return n, nil
}

// ensureCapacity grows the backing file (truncate-extend then remap) so
// it can hold at least n entries, capacity policy.
// It never shrinks.
func (s *Store) ensureCapacity(n int) error {
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	required := requiredSize(n)
	if fi.Size() >= required {
		return nil
	}
	if err := mmap.FileUnmap(s.data); err != nil {
		return err
	}
	data, err := mmap.FileMap(s.file, int(required))
	if err != nil {
		return err
	}
	s.data = data
	fs.Debugf(s.dirAlias, "lsdata: grew retrieve list to %d entries (%d bytes)", stepCountFor(n), required)
	return nil
}

// Reset truncates the list back to exactly one Step of empty capacity
// and zero entries.
func (s *Store) Reset() error {
	if s.data == nil {
		return ErrNotAttached
	}
	if err := mmap.FileUnmap(s.data); err != nil {
		return err
	}
	size := int64(HeaderSize) + int64(Step)*int64(EntrySize)
	if err := s.file.Truncate(size); err != nil {
		return err
	}
	data, err := mmap.FileMap(s.file, int(size))
	if err != nil {
		return err
	}
	s.data = data
	s.header = Header{NoOfListedFiles: 0, Version: CurrentRLVersion, CreationTime: nowUnix()}
	copy(s.data[:HeaderSize], encodeHeader(s.header))
	return nil
}

// Detach closes the Store. If remove is true the backing file is
// permanently deleted.
func (s *Store) Detach(remove bool) error {
	var err error
	if s.data != nil {
		err = mmap.FileUnmap(s.data)
		s.data = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.file = nil
	}
	if remove {
		if rerr := os.Remove(s.path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}
