package worker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/filerelay/status"
)

func newTestFSATable(t *testing.T, n int) *status.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, n)
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestResetFSAFaultySetsNotWorking(t *testing.T) {
	tbl := newTestFSATable(t, 1)
	r, _ := tbl.ReadFSA(0)
	r.TotalFileCounter = 5
	r.TotalFileSize = 500
	r.JobStatus[0].ProcID = 42
	require.NoError(t, tbl.WriteFSA(0, r))

	require.NoError(t, ResetFSA(tbl, 0, 0, ResetFaulty, 3, 300))

	got, err := tbl.ReadFSA(0)
	require.NoError(t, err)
	assert.Equal(t, status.NotWorking, got.JobStatus[0].ConnectStatus)
	assert.EqualValues(t, -1, got.JobStatus[0].ProcID)
	assert.EqualValues(t, 2, got.TotalFileCounter)
	assert.EqualValues(t, 200, got.TotalFileSize)
	assert.EqualValues(t, 0, got.FileCounterDone)
	assert.EqualValues(t, 0, got.BytesSend)
}

func TestResetFSACleanSetsDisconnect(t *testing.T) {
	tbl := newTestFSATable(t, 1)
	require.NoError(t, ResetFSA(tbl, 0, 0, ResetClean, 0, 0))

	got, err := tbl.ReadFSA(0)
	require.NoError(t, err)
	assert.Equal(t, status.Disconnect, got.JobStatus[0].ConnectStatus)
}

func TestResetFSAIdempotentSecondCallIsNoop(t *testing.T) {
	tbl := newTestFSATable(t, 1)
	r, _ := tbl.ReadFSA(0)
	r.TotalFileCounter = 5
	r.TotalFileSize = 500
	require.NoError(t, tbl.WriteFSA(0, r))

	require.NoError(t, ResetFSA(tbl, 0, 0, ResetFaulty, 3, 300))
	afterFirst, err := tbl.ReadFSA(0)
	require.NoError(t, err)

	require.NoError(t, ResetFSA(tbl, 0, 0, ResetFaulty, 0, 0))
	afterSecond, err := tbl.ReadFSA(0)
	require.NoError(t, err)

	assert.Equal(t, afterFirst, afterSecond)
}
