package worker

import (
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/status"
)

// ResetMode selects the terminal connect_status ResetFSA installs.
type ResetMode int

// Reset modes.
const (
	// ResetFaulty marks the host NOT_WORKING: a protocol failure, or the
	// SEGV/BUS handlers preserving a core dump.
	ResetFaulty ResetMode = iota
	// ResetClean marks the host DISCONNECT: a normal end of job.
	ResetClean
)

// ResetFSA implements reset_fsa(mode, file_total_shown,
// file_size_total_shown): it sets connect_status, zeroes this job's
// per-slot counters, and, if the caller was still showing pending
// files/bytes in the host totals, subtracts them under LockTFC so the
// host's aggregate counters never include work this slot will no longer
// perform.
func ResetFSA(table *status.Table, pos int, jobNo int, mode ResetMode, fileTotalShown int32, fileSizeTotalShown int64) error {
	r, err := table.ReadFSA(pos)
	if err != nil {
		return err
	}

	if jobNo >= 0 && jobNo < len(r.JobStatus) {
		r.JobStatus[jobNo] = status.JobSlot{ProcID: -1}
		switch mode {
		case ResetFaulty:
			r.JobStatus[jobNo].ConnectStatus = status.NotWorking
		case ResetClean:
			r.JobStatus[jobNo].ConnectStatus = status.Disconnect
		}
	}
	if err := table.WriteFSA(pos, r); err != nil {
		return err
	}

	if fileTotalShown > 0 || fileSizeTotalShown > 0 {
		if err := table.UpdateTFC(pos, fileTotalShown, fileSizeTotalShown, time.Now()); err != nil {
			return err
		}
		// UpdateTFC also bumps file_counter_done/bytes_send, which a
		// pure "subtract the unshown pending total" should not do;
		// correct those two fields back out under the counter lock.
		// last_connection keeps the time UpdateTFC set.
		if err := undoDoneAccounting(table, pos, fileTotalShown, fileSizeTotalShown); err != nil {
			return err
		}
	}

	fs.Debugf(table.Path(), "worker: reset_fsa pos=%d job=%d mode=%v pending_files=%d pending_bytes=%d",
		pos, jobNo, mode, fileTotalShown, fileSizeTotalShown)
	return nil
}

// undoDoneAccounting reverses the file_counter_done/bytes_send bump that
// UpdateTFC unconditionally applies, since reset_fsa's pending-total
// subtraction is bookkeeping for work abandoned, not work completed.
func undoDoneAccounting(table *status.Table, pos int, n int32, bytes int64) error {
	if err := table.LockTFC(pos); err != nil {
		return err
	}
	defer table.UnlockTFC(pos)

	r, err := table.ReadFSA(pos)
	if err != nil {
		return err
	}
	r.FileCounterDone -= int64(n)
	if r.FileCounterDone < 0 {
		r.FileCounterDone = 0
	}
	r.BytesSend -= bytes
	if r.BytesSend < 0 {
		r.BytesSend = 0
	}
	return table.WriteFSA(pos, r)
}
