package lsdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachCreatesNewList(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)
	defer s.Detach(false)

	assert.Equal(t, 0, s.NoOfListedFiles())

	fi, err := os.Stat(pathFor(dir, "remote1"))
	require.NoError(t, err)
	assert.Equal(t, requiredSize(0), fi.Size())
}

func TestAppendAndGet(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)
	defer s.Detach(false)

	var e Entry
	e.SetName("file1.dat")
	e.Size = 1234
	idx, err := s.Append(e)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, s.NoOfListedFiles())

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "file1.dat", got.Name())
	assert.Equal(t, int64(1234), got.Size)
}

func TestAppendGrowsByExactlyOneStep(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)
	defer s.Detach(false)

	for i := 0; i < Step-1; i++ {
		var e Entry
		e.SetName("f")
		_, err := s.Append(e)
		require.NoError(t, err)
	}
	fi, err := s.file.Stat()
	require.NoError(t, err)
	assert.Equal(t, requiredSize(Step-1), fi.Size())
	assert.Equal(t, requiredSize(Step-1), int64(HeaderSize)+int64(Step)*int64(EntrySize))

	// One more entry crosses the STEP boundary: exactly one growth to
	// 2*Step capacity.
	var e Entry
	e.SetName("last")
	_, err = s.Append(e)
	require.NoError(t, err)

	fi, err = s.file.Stat()
	require.NoError(t, err)
	assert.Equal(t, requiredSize(Step), fi.Size())
	assert.Equal(t, int64(HeaderSize)+int64(2*Step)*int64(EntrySize), fi.Size())
}

func TestResetTruncatesToOneStep(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)
	defer s.Detach(false)

	for i := 0; i < Step+5; i++ {
		var e Entry
		e.SetName("f")
		_, err := s.Append(e)
		require.NoError(t, err)
	}

	require.NoError(t, s.Reset())
	assert.Equal(t, 0, s.NoOfListedFiles())

	fi, err := s.file.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize)+int64(Step)*int64(EntrySize), fi.Size())
}

func TestDetachRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)

	path := pathFor(dir, "remote1")
	require.NoError(t, s.Detach(true))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInvariantFileSizeModEntrySize(t *testing.T) {
	dir := t.TempDir()
	s, err := Attach(dir, "remote1", true)
	require.NoError(t, err)
	defer s.Detach(false)

	for i := 0; i < 37; i++ {
		var e Entry
		e.SetName("f")
		_, err := s.Append(e)
		require.NoError(t, err)
	}

	fi, err := s.file.Stat()
	require.NoError(t, err)
	assert.Zero(t, (fi.Size()-int64(HeaderSize))%int64(EntrySize))
}

func TestPathForLayout(t *testing.T) {
	got := pathFor("/work", "alias1")
	assert.Equal(t, filepath.Join("/work", "file_dir", "incoming", "ls_data", "alias1"), got)
}
