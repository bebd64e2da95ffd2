package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/protocol"
	"github.com/rclone/filerelay/status"
	"github.com/rclone/filerelay/trl"
)

// DefaultNoopInterval bounds how long a keep-connected idle wait sleeps
// before re-checking the next scheduled directory check.
const DefaultNoopInterval = 30 * time.Second

// Job ties together everything one sf_xxx/gf_xxx invocation needs: the
// decoded arguments/options, the attached FSA position, and the TRL
// engine whose computed share governs the transfer rate. Process-wide
// globals (fsa, fra, rl, db, timeout_flag) are replaced by this explicit
// struct passed through the call chain.
type Job struct {
	Args    *Args
	Opts    *Options
	Table   *status.Table
	Mapping *status.PositionMapping
	Pos     int
	JobNo   int
	Engine  *trl.Engine
	Limiter *trl.Limiter

	hostAlias string
}

// NewJob attaches to Args.FSAPos on table and resolves this host's
// current real hostname, short of installing signal handlers (the
// caller wires those with worker.Install, since their lifetime is the
// whole process, not one Job).
func NewJob(args *Args, opts *Options, table *status.Table, path string, kind status.Kind, engine *trl.Engine) (*Job, error) {
	mapping, err := status.AttachPosition(path, kind, args.FSAPos)
	if err != nil {
		return nil, fmt.Errorf("worker: attach: %w", err)
	}

	fsa, err := mapping.ReadFSA()
	if err != nil {
		mapping.Detach()
		return nil, err
	}
	hostAlias := cstring(fsa.HostAlias[:])

	j := &Job{
		Args:      args,
		Opts:      opts,
		Table:     table,
		Mapping:   mapping,
		Pos:       args.FSAPos,
		JobNo:     int(args.JobNo),
		Engine:    engine,
		hostAlias: hostAlias,
	}

	hostname := ResolveRealHostname(&fsa, opts.ToggleHost)
	if err := mapping.WriteFSA(fsa); err != nil { // persist any toggle flip
		mapping.Detach()
		return nil, err
	}
	fs.Debugf(hostAlias, "worker: attached pos=%d job=%d resolved hostname=%s", args.FSAPos, args.JobNo, hostname)

	if engine != nil {
		share, err := j.trlShare()
		if err == nil && share > 0 {
			j.Limiter = trl.NewLimiter(share, int(fsa.BlockSize))
		}
	}
	return j, nil
}

func (j *Job) trlShare() (int64, error) {
	if err := j.Engine.CalcTRLPerProcess(j.hostAlias); err != nil {
		return 0, err
	}
	fsa, err := j.Mapping.ReadFSA()
	if err != nil {
		return 0, err
	}
	return fsa.TRLPerProcess, nil
}

// CheckGeneration re-checks the FSA/FRA for a generational swap. If the
// host alias can no longer be found, the position is gone and the
// caller should exit cleanly rather than reuse a stale position; it
// returns invalid=true in that case, having already re-attached to the
// new generation otherwise.
func (j *Job) CheckGeneration(path string, kind status.Kind) (invalid bool, err error) {
	if cerr := j.Mapping.Check(); cerr == nil {
		return false, nil
	} else if cerr != status.ErrStale {
		return false, cerr
	}

	if derr := j.Mapping.Detach(); derr != nil {
		fs.Debugf(j.hostAlias, "worker: detach after stale: %v", derr)
	}

	newPos, ferr := FindPositionByHostAlias(path, kind, j.hostAlias)
	if ferr != nil {
		// host_alias no longer present in the new generation: the
		// position is gone, exit cleanly rather than treat this as a
		// failure.
		return true, nil
	}

	mapping, aerr := status.AttachPosition(path, kind, newPos)
	if aerr != nil {
		return false, aerr
	}
	j.Mapping = mapping
	j.Pos = newPos
	fs.Debugf(j.hostAlias, "worker: re-attached at pos=%d after generation swap", newPos)
	return false, nil
}

// FindPositionByHostAlias scans table for a record whose host_alias
// matches alias, used to re-resolve db.fsa_pos after a generational
// swap.
func FindPositionByHostAlias(path string, kind status.Kind, alias string) (int, error) {
	table, err := status.Open(path, kind)
	if err != nil {
		return 0, err
	}
	defer table.Close()

	for i := 0; i < table.NoOfRecords(); i++ {
		r, err := table.ReadFSA(i)
		if err != nil {
			continue
		}
		if cstring(r.HostAlias[:]) == alias {
			return i, nil
		}
	}
	return 0, status.ErrInvalidPosition
}

// MoreFilesOrKeepConnected reports whether the work loop should keep
// running: the DISABLE_RETRIEVE feature flag is clear and either more
// files remain in the list, or keep-connected is positive and
// ExecTimeup still says it's worth waiting.
func MoreFilesOrKeepConnected(ctx context.Context, disableRetrieve bool, remaining int, keepConnected time.Duration, nextCheckTime time.Time) (bool, error) {
	if disableRetrieve {
		return false, nil
	}
	if remaining > 0 {
		return true, nil
	}
	if keepConnected <= 0 {
		return false, nil
	}
	return ExecTimeup(ctx, keepConnected, nextCheckTime)
}

// ExecTimeup sleeps for min(keepConnected, DefaultNoopInterval), then
// reports whether it is still worth waiting: false once nextCheckTime
// (the directory's next scheduled check) has passed.
func ExecTimeup(ctx context.Context, keepConnected time.Duration, nextCheckTime time.Time) (bool, error) {
	interval := keepConnected
	if interval > DefaultNoopInterval {
		interval = DefaultNoopInterval
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(interval):
	}
	if !nextCheckTime.IsZero() && time.Now().After(nextCheckTime) {
		return false, nil
	}
	return true, nil
}

// TransferFile moves one send-job file through adapter, applying the
// job's TRL limiter if one is active, and updates the host's counters
// through VerifyAndUpdateTFC. Adapters with a named-file surface
// (protocol.FileStorer) get the remote name; the rest take the raw
// bytes through Write. It is the innermost step of the send work loop.
func (j *Job) TransferFile(ctx context.Context, adapter protocol.Adapter, store *lsdata.Store, remoteName string, data []byte) error {
	if j.Limiter != nil {
		if err := j.Limiter.WaitN(ctx, len(data)); err != nil {
			return err
		}
	}
	if storer, ok := adapter.(protocol.FileStorer); ok {
		if err := storer.StoreFile(ctx, remoteName, data); err != nil {
			return err
		}
	} else {
		if _, err := adapter.Write(data); err != nil {
			return err
		}
		if checker, ok := adapter.(interface{ CheckReply() (protocol.WMOReply, error) }); ok {
			reply, err := checker.CheckReply()
			if err != nil {
				return err
			}
			if reply != protocol.WMOAcknowledge {
				return fmt.Errorf("worker: %s: peer sent negative acknowledge", remoteName)
			}
		}
	}
	return VerifyAndUpdateTFC(j.Table, store, j.Pos, 1, int64(len(data)), time.Now())
}

// Finish releases the attached position. Callers that are exiting
// after a protocol failure should call ResetFSA first.
func (j *Job) Finish() error {
	return j.Mapping.Detach()
}
