package mmap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFree(t *testing.T) {
	const size = 4096

	b := MustAlloc(size)
	assert.Equal(t, size, len(b))

	for i := range b {
		b[i] = byte(i)
	}

	MustFree(b)
}

func TestFileMapUnmap(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mmap-test")
	require.NoError(t, err)
	defer f.Close()

	const size = 4096
	b, err := FileMap(f, size)
	require.NoError(t, err)
	assert.Equal(t, size, len(b))

	b[0] = 0x42
	require.NoError(t, Sync(b))
	require.NoError(t, FileUnmap(b))

	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(size), fi.Size())
}

func TestFileMapGrowsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mmap-test-grow")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(10))

	b, err := FileMap(f, 4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, len(b))
	require.NoError(t, FileUnmap(b))
}
