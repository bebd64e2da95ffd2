package reinit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestRunLevelThreeCallsSaveStatusAndRemovesGenerations(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "fifo_dir", "fsa.stat.0"))
	touch(t, filepath.Join(dir, "fifo_dir", "fra.stat.0"))
	touch(t, filepath.Join(dir, "fifo_dir", "msg_cache")) // must survive at level 3

	saveCalled := false
	r := &Reinitialiser{WorkDir: dir, SaveStatus: func(ctx context.Context) error {
		saveCalled = true
		return nil
	}}

	require.NoError(t, r.Run(context.Background(), 3, TypesizeChange{}))
	assert.True(t, saveCalled)

	_, err := os.Stat(filepath.Join(dir, "fifo_dir", "fsa.stat.0"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "fifo_dir", "msg_cache"))
	assert.NoError(t, err)
}

func TestRunLevelEightDoesNotCallSaveStatus(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "fifo_dir", "typesize_data"))

	saveCalled := false
	r := &Reinitialiser{WorkDir: dir, SaveStatus: func(ctx context.Context) error {
		saveCalled = true
		return nil
	}}

	require.NoError(t, r.Run(context.Background(), 8, TypesizeChange{}))
	assert.False(t, saveCalled)

	_, err := os.Stat(filepath.Join(dir, "fifo_dir", "typesize_data"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTypesizeChangeForcesPurgeRegardlessOfLevel(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "fifo_dir", "typesize_data"))

	r := &Reinitialiser{WorkDir: dir}
	require.NoError(t, r.Run(context.Background(), 1, TypesizeChange{OffT: true}))

	_, err := os.Stat(filepath.Join(dir, "fifo_dir", "typesize_data"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunLevelNineWipesSpoolAndRotatesLog(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "file_dir", "incoming", "host-a", "f1"))
	touch(t, filepath.Join(dir, "log", "afd.log"))

	r := &Reinitialiser{WorkDir: dir}
	require.NoError(t, r.Run(context.Background(), 9, TypesizeChange{}))

	_, err := os.Stat(filepath.Join(dir, "file_dir"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "log", "afd.log"))
	assert.True(t, os.IsNotExist(err))

	matches, err := filepath.Glob(filepath.Join(dir, "log", "afd.log.*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRunMissingFilesAreNotAnError(t *testing.T) {
	dir := t.TempDir()
	r := &Reinitialiser{WorkDir: dir}
	assert.NoError(t, r.Run(context.Background(), 7, TypesizeChange{}))
}
