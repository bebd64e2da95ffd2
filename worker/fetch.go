package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/protocol"
	"github.com/rclone/filerelay/status"
)

// RemoteFile is a protocol-agnostic view of one remote directory entry,
// used to drive the generic (non-exec) gf_xxx retrieve loop against
// lsdata.Store.
type RemoteFile struct {
	Name  string
	Size  int64
	Mtime time.Time
}

// FetchAdapter is the subset of protocol.Adapter plus directory-listing
// and single-file-open behaviour the generic fetch loop needs. Protocol
// adapters don't implement this directly (their List/ReadDir/Retrieve/
// Open methods return protocol-specific types); the FTPRemote/SFTPRemote
// wrappers below adapt them.
type FetchAdapter interface {
	protocol.Adapter
	ListRemote(dir string) ([]RemoteFile, error)
	FetchRemote(name string) (io.ReadCloser, error)
}

// FTPRemote adapts *protocol.FTP to FetchAdapter.
type FTPRemote struct{ *protocol.FTP }

// ListRemote implements FetchAdapter.
func (r FTPRemote) ListRemote(dir string) ([]RemoteFile, error) {
	entries, err := r.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		out = append(out, RemoteFile{Name: e.Name, Size: int64(e.Size), Mtime: e.Time})
	}
	return out, nil
}

// FetchRemote implements FetchAdapter.
func (r FTPRemote) FetchRemote(name string) (io.ReadCloser, error) {
	return r.Retrieve(name, 0)
}

// SFTPRemote adapts *protocol.SFTP to FetchAdapter.
type SFTPRemote struct{ *protocol.SFTP }

// ListRemote implements FetchAdapter.
func (r SFTPRemote) ListRemote(dir string) ([]RemoteFile, error) {
	entries, err := r.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		out = append(out, RemoteFile{Name: e.Name, Size: e.Size, Mtime: e.ModTime})
	}
	return out, nil
}

// FetchRemote implements FetchAdapter.
func (r SFTPRemote) FetchRemote(name string) (io.ReadCloser, error) {
	return r.Open(name, 0)
}

// FetchListConfig bundles everything RunFetchList needs beyond the
// already-attached Job.
type FetchListConfig struct {
	Adapter         FetchAdapter
	AdapterOptions  protocol.Options
	RemoteDir       string
	LocalDir        string // FRA retrieve_work_dir
	Dup             *DupCheckStore
	KeepConnected   time.Duration
	DisableRetrieve bool
	TablePath       string
	Kind            status.Kind
}

// RunFetchList drives the generic (protocol-listing) flavour of gf_xxx:
// list the remote directory, download anything new or changed since the
// last retrieve-list snapshot, record it, and loop on the same
// generation-check / keep-connected schedule as RunSend.
func RunFetchList(ctx context.Context, job *Job, store *lsdata.Store, cfg FetchListConfig) error {
	if err := cfg.Adapter.Connect(ctx, cfg.AdapterOptions); err != nil {
		_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
		return err
	}
	if err := cfg.Adapter.Auth(ctx); err != nil {
		_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
		return err
	}

	for {
		remote, err := cfg.Adapter.ListRemote(cfg.RemoteDir)
		if err != nil {
			_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
			return err
		}

		var count int32
		var total int64
		for _, rf := range remote {
			idx, existing, found := findByName(store, rf.Name)
			if found && existing.Retrieved && existing.FileMtime == rf.Mtime.Unix() && existing.Size == rf.Size {
				continue
			}

			if cfg.Dup != nil {
				dup, derr := cfg.Dup.IsDup(filepath.Join(cfg.LocalDir, rf.Name), rf.Name, rf.Size)
				if derr != nil {
					_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, 0, 0)
					return derr
				}
				if dup {
					fs.Debugf(rf.Name, "worker: skipping duplicate fetch")
					continue
				}
			}

			n, err := fetchOneFile(cfg.Adapter, cfg.LocalDir, rf)
			if err != nil {
				_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(count), total)
				return err
			}

			entry := lsdata.Entry{FileMtime: rf.Mtime.Unix(), GotDate: time.Now().Unix(), Size: n, Retrieved: true, InList: true}
			entry.SetName(rf.Name)
			if found {
				if err := store.Set(idx, entry); err != nil {
					_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(count), total)
					return err
				}
			} else if _, err := store.Append(entry); err != nil {
				_ = ResetFSA(job.Table, job.Pos, job.JobNo, ResetFaulty, int32(count), total)
				return err
			}
			fs.Logf(cfg.LocalDir, "worker: retrieved %s (%d bytes)", rf.Name, n)
			count++
			total += n
		}

		if count > 0 {
			if err := VerifyAndUpdateTFC(job.Table, store, job.Pos, count, total, time.Now()); err != nil {
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

// findByName scans store for an entry named name, returning its index
// and current value if present.
func findByName(store *lsdata.Store, name string) (int, lsdata.Entry, bool) {
	for i := 0; i < store.NoOfListedFiles(); i++ {
		e, err := store.Get(i)
		if err != nil {
			continue
		}
		if e.Name() == name {
			return i, e, true
		}
	}
	return 0, lsdata.Entry{}, false
}

// fetchOneFile downloads rf into dir, returning the number of bytes
// written.
func fetchOneFile(adapter FetchAdapter, dir string, rf RemoteFile) (int64, error) {
	rc, err := adapter.FetchRemote(rf.Name)
	if err != nil {
		return 0, fmt.Errorf("worker: fetch %s: %w", rf.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	dst, err := os.Create(filepath.Join(dir, rf.Name))
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, rc)
	if err != nil {
		return n, fmt.Errorf("worker: write %s: %w", rf.Name, err)
	}
	return n, nil
}
