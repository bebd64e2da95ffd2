package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/filerelay/protocol"
)

func TestExecFetchDirNameIsStableCRC(t *testing.T) {
	a := ExecFetchDirName("list-remote.sh --host a")
	b := ExecFetchDirName("list-remote.sh --host a")
	c := ExecFetchDirName("list-remote.sh --host b")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 8)
}

func TestPrepareExecFetchCreatesIncomingAndScratch(t *testing.T) {
	base := t.TempDir()
	incoming, scratch, err := PrepareExecFetch(base, "do-thing", 7)
	require.NoError(t, err)

	assert.DirExists(t, incoming)
	assert.DirExists(t, scratch)
	assert.Equal(t, filepath.Join(incoming, ".7"), scratch)
}

func TestRunExecFetchAndCollectResults(t *testing.T) {
	base := t.TempDir()
	command := "echo hi > out1.txt; echo bye > out2.txt"
	incoming, scratch, err := PrepareExecFetch(base, command, 1)
	require.NoError(t, err)

	adapter := &protocol.Exec{}
	_, err = RunExecFetch(context.Background(), adapter, protocol.Options{}, command, scratch)
	require.NoError(t, err)

	count, total, err := CollectExecFetchResults(scratch, incoming)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Greater(t, total, int64(0))

	assert.FileExists(t, filepath.Join(incoming, "out1.txt"))
	assert.FileExists(t, filepath.Join(incoming, "out2.txt"))
	_, err = os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))
}
