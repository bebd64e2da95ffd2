package worker

import (
	"time"

	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/status"
)

// BurstConfig is the per-burst mutable configuration a send job can
// refresh between bursts without reconnecting: rename rules, a
// trans-exec post-processing command, and whether duplicate-checking is
// active for this burst.
type BurstConfig struct {
	RenameRule     string
	TransExecCmd   string
	DuplicateCheck bool
}

// Burst is the record init_sf_burst2 builds: the merged configuration
// plus the file list and totals this burst will contribute, replacing
// the global mutable `db` copy a process-wide extern would otherwise
// carry.
type Burst struct {
	Config    BurstConfig
	Files     []lsdata.Entry
	NoOfFiles int32
	FileSize  int64
}

// InitSFBurst2 builds a Burst from newly supplied configuration and the
// freshly listed files for this burst.
func InitSFBurst2(cfg BurstConfig, files []lsdata.Entry) *Burst {
	var size int64
	for _, f := range files {
		size += f.Size
	}
	return &Burst{Config: cfg, Files: files, NoOfFiles: int32(len(files)), FileSize: size}
}

// Activate installs this burst into the host's live state: under the
// host lock it sets the job slot's connect_status to active, folds this
// burst's file count/size into the host's running totals, and arms the
// job's transfer timeout. LockHS doubles as the general host lock here:
// this package's status.Table has no separate lock region dedicated to
// job_status mutation, and LockHS already serialises any in-place
// rewrite of one host's record.
func (b *Burst) Activate(table *status.Table, pos int, jobNo int, activeStatus status.ConnectStatus, transferTimeout time.Duration) error {
	if err := table.LockHS(pos); err != nil {
		return err
	}
	defer table.UnlockHS(pos)

	r, err := table.ReadFSA(pos)
	if err != nil {
		return err
	}
	if jobNo < 0 || jobNo >= len(r.JobStatus) {
		return status.ErrInvalidPosition
	}

	slot := &r.JobStatus[jobNo]
	slot.ConnectStatus = activeStatus
	slot.NoOfFiles += b.NoOfFiles
	slot.FileSize += b.FileSize
	r.TransferTimeout = int32(transferTimeout.Seconds())

	return table.WriteFSA(pos, r)
}
