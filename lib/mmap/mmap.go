// Package mmap provides anonymous and file-backed memory mapping used by
// the shared status tables and the confirmation queue.
package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MustAlloc allocates size bytes of anonymous shared memory. It panics on
// failure since callers have no sensible fallback for a failed mapping.
func MustAlloc(size int) []byte {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		panic(fmt.Sprintf("mmap: failed to allocate %d bytes: %v", size, err))
	}
	return b
}

// MustFree releases memory allocated with MustAlloc. It panics on failure.
func MustFree(b []byte) {
	if len(b) == 0 {
		return
	}
	if err := unix.Munmap(b); err != nil {
		panic(fmt.Sprintf("mmap: failed to free %d bytes: %v", len(b), err))
	}
}

// FileMap maps the first size bytes of f into memory, growing the underlying file to
// size bytes first if it is smaller. The mapping is MAP_SHARED so writes
// are visible to every process sharing the same table and are written back
// to disk by the kernel.
func FileMap(f *os.File, size int) ([]byte, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: stat: %w", err)
	}
	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, fmt.Errorf("mmap: truncate: %w", err)
		}
	}
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: map: %w", err)
	}
	return b, nil
}

// FileUnmap unmaps a mapping returned by FileMap, flushing dirty pages
// back to the backing file first.
func FileUnmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Msync(b, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmap: msync: %w", err)
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("mmap: unmap: %w", err)
	}
	return nil
}

// Sync flushes dirty pages of a mapping back to the backing file without
// unmapping it.
func Sync(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Msync(b, unix.MS_ASYNC); err != nil {
		return fmt.Errorf("mmap: msync: %w", err)
	}
	return nil
}
