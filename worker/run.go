package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/protocol"
	"github.com/rclone/filerelay/status"
)

// FileSource supplies the next local file a send job should transfer.
// DirFileSource is the default, directory-listing implementation; tests
// and callers with their own selection/rename-rule logic can substitute
// another.
type FileSource interface {
	// Next returns the next file to send, or ok=false once exhausted.
	Next() (localPath, remoteName string, size int64, ok bool, err error)
}

// DirFileSource lists regular files directly inside a directory,
// optionally dropping anything that has already waited longer than
// AgeLimit (the -a option: a file past its age limit is stale and no
// longer worth delivering).
type DirFileSource struct {
	Dir      string
	AgeLimit time.Duration

	entries []os.DirEntry
	pos     int
}

// NewDirFileSource lists dir's current contents once; files added after
// construction are not picked up by this burst.
func NewDirFileSource(dir string, ageLimit time.Duration) (*DirFileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("worker: list %s: %w", dir, err)
	}
	return &DirFileSource{Dir: dir, AgeLimit: ageLimit, entries: entries}, nil
}

func (d *DirFileSource) tooOld(modTime time.Time) bool {
	return d.AgeLimit > 0 && time.Since(modTime) > d.AgeLimit
}

// Next implements FileSource.
func (d *DirFileSource) Next() (string, string, int64, bool, error) {
	for d.pos < len(d.entries) {
		e := d.entries[d.pos]
		d.pos++
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", "", 0, false, err
		}
		if d.tooOld(info.ModTime()) {
			fs.Debugf(e.Name(), "worker: dropping file past age limit %s", d.AgeLimit)
			continue
		}
		return filepath.Join(d.Dir, e.Name()), e.Name(), info.Size(), true, nil
	}
	return "", "", 0, false, nil
}

// Entries returns the lsdata.Entry list for this burst's files, used to
// feed InitSFBurst2's totals before any file has actually been sent. It
// applies the same age-limit filter as Next so the burst totals match
// what the loop will really deliver.
func (d *DirFileSource) Entries() []lsdata.Entry {
	out := make([]lsdata.Entry, 0, len(d.entries))
	for _, e := range d.entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if d.tooOld(info.ModTime()) {
			continue
		}
		var entry lsdata.Entry
		entry.SetName(e.Name())
		entry.Size = info.Size()
		entry.FileMtime = info.ModTime().Unix()
		out = append(out, entry)
	}
	return out
}

// SendConfig bundles everything RunSend needs beyond the already-attached
// Job: the connected adapter, its options, the burst's file list, and
// optional de-duplication.
type SendConfig struct {
	Adapter         protocol.Adapter
	AdapterOptions  protocol.Options
	Active          status.ConnectStatus
	Files           *DirFileSource
	Dup             *DupCheckStore
	KeepConnected   time.Duration
	DisableRetrieve bool
	TablePath       string
	Kind            status.Kind
}

// RunSend drives one sf_xxx invocation's work loop end to end: activates
// the burst, connects and authenticates, transfers every listed file
// (skipping duplicates when enabled),
// re-checks the generation after each pass over the file list, and loops for additional
// bursts while DISABLE_RETRIEVE is clear and files remain or
// keep-connected idling says to keep waiting. A protocol failure resets
// the position and returns the error for the caller to translate via
// ExitCode; successful exhaustion returns nil.
func RunSend(ctx context.Context, job *Job, store *lsdata.Store, cfg SendConfig) error {
	burst := InitSFBurst2(BurstConfig{DuplicateCheck: cfg.Dup != nil}, cfg.Files.Entries())
	if err := burst.Activate(job.Table, job.Pos, job.JobNo, cfg.Active, cfg.AdapterOptions.TransferTimeout); err != nil {
		return err
	}

	if err := cfg.Adapter.Connect(ctx, cfg.AdapterOptions); err != nil {
		_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(burst.NoOfFiles), burst.FileSize)
		return err
	}
	if err := cfg.Adapter.Auth(ctx); err != nil {
		_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(burst.NoOfFiles), burst.FileSize)
		return err
	}

	remaining := int(burst.NoOfFiles)
	for {
		for {
			localPath, remoteName, size, ok, err := cfg.Files.Next()
			if err != nil {
				_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(remaining), 0)
				return err
			}
			if !ok {
				break
			}
			remaining--

			if cfg.Dup != nil {
				dup, derr := cfg.Dup.IsDup(localPath, remoteName, size)
				if derr != nil {
					_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(remaining), 0)
					return derr
				}
				if dup {
					fs.Debugf(remoteName, "worker: skipping duplicate")
					continue
				}
			}

			data, err := os.ReadFile(localPath)
			if err != nil {
				_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(remaining), 0)
				return err
			}
			if err := job.TransferFile(ctx, cfg.Adapter, store, remoteName, data); err != nil {
				_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(remaining), 0)
				return err
			}
			fs.Logf(remoteName, "worker: sent %s (%d bytes)", remoteName, len(data))
		}

		invalid, err := job.CheckGeneration(cfg.TablePath, cfg.Kind)
		if err != nil {
			return err
		}
		if invalid {
			return nil
		}

		more, err := MoreFilesOrKeepConnected(ctx, cfg.DisableRetrieve, remaining, cfg.KeepConnected, time.Time{})
		if err != nil {
			_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetClean, 0, 0)
			return err
		}
		if !more {
			break
		}
	}

	if cfg.Adapter.TimeoutFlag() == protocol.TimeoutOff {
		_ = cfg.Adapter.Quit(ctx)
	}
	return ResetFSA(job.Table, job.Pos, job.JobNo, ResetClean, 0, 0)
}

// ExecFetchConfig bundles the parameters RunFetchExec needs for the
// exec-fetch flavour of gf_xxx.
type ExecFetchConfig struct {
	Adapter         *protocol.Exec
	AdapterOptions  protocol.Options
	Command         string
	RetrieveWorkDir string
	KeepConnected   time.Duration
	DisableRetrieve bool
	TablePath       string
	Kind            status.Kind
}

// RunFetchExec drives one gf_xxx exec-flavour invocation: prepares the
// incoming/scratch directories, spawns the command, collects whatever
// regular files it produced into the incoming directory, updates the
// host's counters, and loops on the keep-connected schedule exactly like
// RunSend's tail end.
func RunFetchExec(ctx context.Context, job *Job, store *lsdata.Store, cfg ExecFetchConfig) error {
	incomingDir, scratchDir, err := PrepareExecFetch(cfg.RetrieveWorkDir, cfg.Command, uint32(job.JobNo))
	if err != nil {
		return err
	}

	for {
		if _, err := RunExecFetch(ctx, cfg.Adapter, cfg.AdapterOptions, cfg.Command, scratchDir); err != nil {
			_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
			return err
		}

		count, total, err := CollectExecFetchResults(scratchDir, incomingDir)
		if err != nil {
			_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
			return err
		}
		if count > 0 {
			if err := VerifyAndUpdateTFC(job.Table, store, job.Pos, int32(count), total, time.Now()); err != nil {
				return err
			}
		}

		invalid, err := job.CheckGeneration(cfg.TablePath, cfg.Kind)
		if err != nil {
			return err
		}
		if invalid {
			return nil
		}

		more, err := MoreFilesOrKeepConnected(ctx, cfg.DisableRetrieve, 0, cfg.KeepConnected, time.Time{})
		if err != nil {
			return err
		}
		if !more {
			break
		}

		scratchDir = filepath.Join(incomingDir, fmt.Sprintf(".%d", job.JobNo))
		if err := os.MkdirAll(scratchDir, 0755); err != nil {
			return err
		}
	}

	return ResetFSA(job.Table, job.Pos, job.JobNo, ResetClean, 0, 0)
}
