package status

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rclone/filerelay/fs"
)

// Manager owns the current generation of a table, performing
// create-if-absent and the generational allocate/populate/mark-stale/
// install swap sequence behind a small, explicit API.
type Manager struct {
	mu     sync.Mutex
	kind   Kind
	path   string
	n      int
	epoch  int64
	table  *Table
}

// NewManager creates a Manager for the table at path, creating it with n
// records if it does not already exist.
func NewManager(path string, kind Kind, n int) (*Manager, error) {
	m := &Manager{kind: kind, path: path, n: n}
	t, err := Open(path, kind)
	if errors.Is(err, os.ErrNotExist) {
		t, err = Create(path, kind, n)
	}
	if err != nil {
		return nil, fmt.Errorf("status: manager init: %w", err)
	}
	m.table = t
	return m, nil
}

// Table returns the currently installed table. Safe to call concurrently
// with Swap; the returned pointer may become stale immediately after
// return.
func (m *Manager) Table() *Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table
}

// Epoch returns the current generation number. Every Swap increments it.
func (m *Manager) Epoch() int64 {
	return atomic.LoadInt64(&m.epoch)
}

// Swap installs a replacement table with newN records: it allocates the
// new file under a distinct temporary name, lets populate fill it in,
// marks the old table STALE, then renames the new file into place and
// bumps the epoch.
func (m *Manager) Swap(newN int, populate func(*Table) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmpPath := fmt.Sprintf("%s.new.%d", m.path, atomic.AddInt64(&m.epoch, 0)+1)
	_ = os.Remove(tmpPath)
	newTable, err := Create(tmpPath, m.kind, newN)
	if err != nil {
		return fmt.Errorf("status: swap: allocate: %w", err)
	}
	if err := populate(newTable); err != nil {
		newTable.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("status: swap: populate: %w", err)
	}

	old := m.table
	if old != nil {
		old.MarkStale()
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		newTable.Close()
		return fmt.Errorf("status: swap: install: %w", err)
	}
	newTable.path = m.path

	m.table = newTable
	m.n = newN
	atomic.AddInt64(&m.epoch, 1)

	if old != nil {
		fs.Debugf(m.path, "status: swapped table generation, epoch now %d", m.Epoch())
		old.Close()
	}
	return nil
}

// Close closes the currently installed table.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table == nil {
		return nil
	}
	return m.table.Close()
}
