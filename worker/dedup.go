package worker

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/rclone/filerelay/fs"
)

// castagnoliTable is the CRC-32C polynomial table; Go's crc32 package
// dispatches to a hardware (SSE4.2/ARM64 CRC) implementation for this
// table on supporting platforms, satisfying the hardware CRC-32 path
// without a separate software/hardware switch.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// DupCheckStore is the per-directory content-CRC marker store behind
// isdup/rm_dupcheck_crc: one zero-byte marker file per distinct (name,
// size, content CRC) tuple already seen; the marker's existence is the
// whole record.
type DupCheckStore struct {
	dir string
}

// NewDupCheckStore opens (creating if needed) the marker directory for
// crcID under workDir/file_dir/dupcheck/<crc_id>/.
func NewDupCheckStore(workDir, crcID string) (*DupCheckStore, error) {
	dir := filepath.Join(workDir, "file_dir", "dupcheck", crcID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("worker: dupcheck mkdir: %w", err)
	}
	return &DupCheckStore{dir: dir}, nil
}

// IsDup computes the CRC-32C of fullname's content and reports whether a
// file of the same name, size and content CRC has already passed through
// this store (isdup(fullname, name, size, crc_id, ...)). When it has
// not, a marker recording the tuple is written so a later call with the
// same arguments returns true.
func (d *DupCheckStore) IsDup(fullname, name string, size int64) (bool, error) {
	sum, err := fileCRC32C(fullname)
	if err != nil {
		return false, err
	}
	marker := d.markerPath(name, size, sum)

	if _, err := os.Stat(marker); err == nil {
		fs.Debugf(fullname, "worker: dupcheck hit name=%s size=%d crc=%08x", name, size, sum)
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return true, nil
		}
		return false, err
	}
	f.Close()
	return false, nil
}

// Remove deletes the marker for (name, size, crc), implementing
// rm_dupcheck_crc for jobs that request the entry be forgotten once the
// job completes.
func (d *DupCheckStore) Remove(name string, size int64, crc uint32) error {
	err := os.Remove(d.markerPath(name, size, crc))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *DupCheckStore) markerPath(name string, size int64, crc uint32) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s.%d.%08x", name, size, crc))
}

// fileCRC32C computes the CRC-32C checksum of a file's content.
func fileCRC32C(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.New(castagnoliTable)
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
