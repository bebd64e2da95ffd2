package lsdata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/mmap"
)

// legacyHeaderSize is the fixed 8-byte header of the one prior on-disk
// shape this package recognises: a 4-byte entry count followed by 4
// bytes of padding/version, with no creation_time field.
const legacyHeaderSize = 8

// legacyDateLayout is the textual mtime format carried by legacy entries.
const legacyDateLayout = "20060102150405"

// oldEntryFileNameLen is the file-name field length of a legacy entry,
// which holds the file name, a 14-byte textual date, size and two flag
// bytes (oldEntrySize is its fixed on-disk size).
const oldEntryFileNameLen = 256

type oldEntry struct {
	FileName  [oldEntryFileNameLen]byte
	MtimeText [14]byte
	Size      int64
	Retrieved byte
	InList    byte
}

var oldEntrySize = binary.Size(oldEntry{})

// DetectLegacy reports whether fileSize matches the exact legacy-shape
// length formula for some plausible entry count n:
// ((n/Step)+1)*Step*sizeof(OldEntry) + legacyHeaderSize.
// It returns an upper bound on n and true on a match.
func DetectLegacy(fileSize int64) (n int, ok bool) {
	if fileSize <= legacyHeaderSize {
		return 0, false
	}
	body := fileSize - legacyHeaderSize
	if int64(oldEntrySize) == 0 || body%int64(oldEntrySize) != 0 {
		return 0, false
	}
	slots := body / int64(oldEntrySize)
	if slots <= 0 || slots%Step != 0 {
		return 0, false
	}
	// ((n/Step)+1)*Step == slots  =>  n/Step == slots/Step - 1
	stepsMinusOne := slots/Step - 1
	if stepsMinusOne < 0 {
		return 0, false
	}
	// n can be anywhere in [stepsMinusOne*Step, (stepsMinusOne+1)*Step);
	// without the live no_of_listed_files word we can only report a bound,
	// (stepsMinusOne+1)*Step, and convertLegacyData finds the real count
	// from the trailing zeroed entries.
	return int(stepsMinusOne+1) * Step, true
}

func decodeOldEntry(b []byte) (oldEntry, error) {
	var e oldEntry
	if len(b) < oldEntrySize {
		return e, ErrCorrupt
	}
	if err := binary.Read(bytes.NewReader(b[:oldEntrySize]), binary.LittleEndian, &e); err != nil {
		return e, err
	}
	return e, nil
}

// convertLegacyEntry turns one legacy entry into the current Entry shape,
// parsing its YYYYMMDDhhmmss textual mtime as local time.
func convertLegacyEntry(old oldEntry) (Entry, error) {
	var e Entry
	nameLen := 0
	for nameLen < len(old.FileName) && old.FileName[nameLen] != 0 {
		nameLen++
	}
	if nameLen == 0 {
		return e, nil // trailing unused slot
	}
	e.SetName(string(old.FileName[:nameLen]))

	dateStr := string(bytes.TrimRight(old.MtimeText[:], "\x00"))
	if dateStr != "" {
		t, err := time.ParseInLocation(legacyDateLayout, dateStr, time.Local)
		if err != nil {
			return e, fmt.Errorf("lsdata: parse legacy mtime %q: %w", dateStr, err)
		}
		e.FileMtime = t.Unix()
	}
	e.Size = old.Size
	e.Retrieved = old.Retrieved != 0
	e.InList = old.InList != 0
	e.GotDate = nowUnix()
	return e, nil
}

// convertLegacyData decodes the whole legacy body into current Entry
// values, stopping at the first all-zero (unused) slot since the legacy
// format pads with zeroed trailing entries rather than recording an exact
// live count past the STEP boundary.
func convertLegacyData(body []byte) ([]Entry, error) {
	var entries []Entry
	for off := 0; off+oldEntrySize <= len(body); off += oldEntrySize {
		old, err := decodeOldEntry(body[off : off+oldEntrySize])
		if err != nil {
			return nil, err
		}
		if old.FileName[0] == 0 {
			break
		}
		e, err := convertLegacyEntry(old)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// migrate upgrades s's backing file in place from its stored legacy
// format to CurrentRLVersion. It writes a hidden sibling file
// (".<alias>"), renames it over the original, and only then closes the
// old mapping/descriptor; on any failure the original file is left
// untouched.
func (s *Store) migrate() error {
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}

	var entries []Entry
	if n, ok := DetectLegacy(fi.Size()); ok {
		fs.Debugf(s.dirAlias, "lsdata: recognised legacy retrieve list shape (n<=%d), converting", n)
		body := s.data[legacyHeaderSize:]
		entries, err = convertLegacyData(body)
		if err != nil {
			return err
		}
	} else {
		// Unrecognised legacy shape: fall back to the generic upgrade
		// chain, reinterpreting whatever entries the stored version's
		// header claims using the current Entry layout. This is the
		// path taken when the exact legacy length formula doesn't match.
		entries, err = s.genericUpgrade()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	hidden := filepath.Join(dir, "."+s.dirAlias)
	_ = os.Remove(hidden)

	nf, err := os.OpenFile(hidden, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("lsdata: create migration sibling: %w", err)
	}
	newStore := &Store{dirAlias: s.dirAlias, path: hidden, file: nf}
	if err := newStore.initialize(); err != nil {
		nf.Close()
		os.Remove(hidden)
		return err
	}
	for _, e := range entries {
		if _, err := newStore.Append(e); err != nil {
			newStore.Detach(true)
			return err
		}
	}

	if err := os.Rename(hidden, s.path); err != nil {
		newStore.Detach(true)
		return fmt.Errorf("lsdata: install migrated file: %w", err)
	}

	// Swap in the migrated mapping and close the old one.
	oldData, oldFile := s.data, s.file
	s.data = newStore.data
	s.file = newStore.file
	s.header = newStore.header

	if oldData != nil {
		_ = mmap.FileUnmap(oldData)
	}
	_ = oldFile.Close()

	fs.Infof(s.dirAlias, "lsdata: migrated retrieve list to version %d (%d entries)", CurrentRLVersion, len(entries))
	return nil
}

// genericUpgrade reinterprets the existing header/body under the current
// Entry layout, carrying forward whatever entries are already shaped
// compatibly. It is the fallback used when the file doesn't match the
// one known legacy exact-length formula.
func (s *Store) genericUpgrade() ([]Entry, error) {
	n := int(s.header.NoOfListedFiles)
	var entries []Entry
	for i := 0; i < n; i++ {
		e, err := s.Get(i)
		if err != nil {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}

