package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/filerelay/status"
)

func TestFindPositionByHostAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, 3)
	require.NoError(t, err)
	defer tbl.Close()

	var r status.FSARecord
	copy(r.HostAlias[:], "host-b")
	require.NoError(t, tbl.WriteFSA(1, r))

	pos, err := FindPositionByHostAlias(path, status.KindFSA, "host-b")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestFindPositionByHostAliasNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, 2)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = FindPositionByHostAlias(path, status.KindFSA, "missing-host")
	assert.Equal(t, status.ErrInvalidPosition, err)
}

func TestNewJobAttachesAndResolvesHostname(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, 1)
	require.NoError(t, err)
	defer tbl.Close()

	var r status.FSARecord
	copy(r.HostAlias[:], "host-a")
	copy(r.RealHostname[0][:], "primary.example.com")
	require.NoError(t, tbl.WriteFSA(0, r))

	args := &Args{WorkDir: "/work", JobNo: 1, FSAID: 0, FSAPos: 0, MsgOrDirID: "abc"}
	opts := &Options{}

	job, err := NewJob(args, opts, tbl, path, status.KindFSA, nil)
	require.NoError(t, err)
	defer job.Finish()

	assert.Equal(t, "host-a", job.hostAlias)
}

func TestCheckGenerationReattachesAfterStaleSwap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, 2)
	require.NoError(t, err)

	var r status.FSARecord
	copy(r.HostAlias[:], "host-a")
	require.NoError(t, tbl.WriteFSA(1, r))

	args := &Args{WorkDir: "/work", JobNo: 1, FSAID: 0, FSAPos: 1, MsgOrDirID: "abc"}
	job, err := NewJob(args, &Options{}, tbl, path, status.KindFSA, nil)
	require.NoError(t, err)
	defer job.Finish()

	// Simulate a manager rewrite: mark the old table stale, then rename a
	// fresh one with host-a at a different position into place.
	tbl.MarkStale()
	newTbl, err := status.Create(path+".new", status.KindFSA, 3)
	require.NoError(t, err)
	var r2 status.FSARecord
	copy(r2.HostAlias[:], "host-a")
	require.NoError(t, newTbl.WriteFSA(2, r2))
	require.NoError(t, newTbl.Close())

	require.NoError(t, os.Rename(path+".new", path))

	invalid, err := job.CheckGeneration(path, status.KindFSA)
	require.NoError(t, err)
	assert.False(t, invalid)
	assert.Equal(t, 2, job.Pos)
}

func TestCheckGenerationExitsCleanlyWhenHostGone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa.stat.0")
	tbl, err := status.Create(path, status.KindFSA, 2)
	require.NoError(t, err)

	var r status.FSARecord
	copy(r.HostAlias[:], "host-a")
	require.NoError(t, tbl.WriteFSA(1, r))

	args := &Args{WorkDir: "/work", JobNo: 1, FSAID: 0, FSAPos: 1, MsgOrDirID: "abc"}
	job, err := NewJob(args, &Options{}, tbl, path, status.KindFSA, nil)
	require.NoError(t, err)

	tbl.MarkStale()
	newTbl, err := status.Create(path+".new", status.KindFSA, 1)
	require.NoError(t, err)
	require.NoError(t, newTbl.Close())
	require.NoError(t, os.Rename(path+".new", path))

	invalid, err := job.CheckGeneration(path, status.KindFSA)
	require.NoError(t, err)
	assert.True(t, invalid)
}

func TestExecTimeupStopsAfterNextCheckTime(t *testing.T) {
	ok, err := ExecTimeup(context.Background(), 10*time.Millisecond, time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecTimeupContinuesBeforeNextCheckTime(t *testing.T) {
	ok, err := ExecTimeup(context.Background(), 10*time.Millisecond, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMoreFilesOrKeepConnectedDisableRetrieve(t *testing.T) {
	more, err := MoreFilesOrKeepConnected(context.Background(), true, 5, time.Second, time.Time{})
	require.NoError(t, err)
	assert.False(t, more)
}

func TestMoreFilesOrKeepConnectedRemainingFiles(t *testing.T) {
	more, err := MoreFilesOrKeepConnected(context.Background(), false, 3, 0, time.Time{})
	require.NoError(t, err)
	assert.True(t, more)
}
