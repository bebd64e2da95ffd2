package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/status"
)

func TestInitSFBurst2SumsFileSizes(t *testing.T) {
	var e1, e2 lsdata.Entry
	e1.Size = 100
	e2.Size = 250
	b := InitSFBurst2(BurstConfig{DuplicateCheck: true}, []lsdata.Entry{e1, e2})

	assert.EqualValues(t, 2, b.NoOfFiles)
	assert.EqualValues(t, 350, b.FileSize)
	assert.True(t, b.Config.DuplicateCheck)
}

func TestBurstActivateSetsConnectStatusAndTotals(t *testing.T) {
	tbl := newTestFSATable(t, 1)
	r, _ := tbl.ReadFSA(0)
	r.JobStatus[0].NoOfFiles = 2
	r.JobStatus[0].FileSize = 500
	require.NoError(t, tbl.WriteFSA(0, r))

	var e lsdata.Entry
	e.Size = 300
	b := InitSFBurst2(BurstConfig{}, []lsdata.Entry{e})

	active := status.ProtocolActive(1)
	require.NoError(t, b.Activate(tbl, 0, 0, active, 45*time.Second))

	got, err := tbl.ReadFSA(0)
	require.NoError(t, err)
	assert.Equal(t, active, got.JobStatus[0].ConnectStatus)
	assert.EqualValues(t, 3, got.JobStatus[0].NoOfFiles)
	assert.EqualValues(t, 800, got.JobStatus[0].FileSize)
	assert.EqualValues(t, 45, got.TransferTimeout)
}
