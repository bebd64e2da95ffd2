package worker

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/protocol"
)

// ExecFetchDirName returns the CRC-32C of command, hex-encoded, used as
// the local incoming directory name for the exec-fetch flavour of
// gf_xxx.
func ExecFetchDirName(command string) string {
	sum := crc32.Checksum([]byte(command), castagnoliTable)
	return fmt.Sprintf("%08x", sum)
}

// PrepareExecFetch creates the incoming directory named after command's
// CRC-32C and a per-worker scratch sub-directory ".<job_no>/" beneath
// it, returning both paths.
func PrepareExecFetch(retrieveWorkDir string, command string, jobNo uint32) (incomingDir, scratchDir string, err error) {
	incomingDir = filepath.Join(retrieveWorkDir, ExecFetchDirName(command))
	if err = os.MkdirAll(incomingDir, 0755); err != nil {
		return "", "", fmt.Errorf("worker: exec-fetch mkdir incoming: %w", err)
	}
	scratchDir = filepath.Join(incomingDir, fmt.Sprintf(".%d", jobNo))
	if err = os.MkdirAll(scratchDir, 0755); err != nil {
		return "", "", fmt.Errorf("worker: exec-fetch mkdir scratch: %w", err)
	}
	return incomingDir, scratchDir, nil
}

// RunExecFetch spawns command in scratchDir via the Exec adapter, with
// the AFD_HC_TIMEOUT/AFD_HC_BLOCKSIZE/AFD_CURRENT_HOSTNAME environment
// prelude (protocol.EnvPrelude) applied through opts, replacing the
// original's `sh -c "<env>; cd <scratch>; <cmd>"` shell-string
// concatenation with an explicit Cmd.Env/Cmd.Dir pair, avoiding the
// quoting hazards of building a shell command line by hand.
func RunExecFetch(ctx context.Context, adapter *protocol.Exec, opts protocol.Options, command, scratchDir string) ([]byte, error) {
	if err := adapter.Connect(ctx, opts); err != nil {
		return nil, err
	}
	return adapter.Run(ctx, command, scratchDir)
}

// CollectExecFetchResults moves every regular file out of scratchDir
// into incomingDir, emitting an output-log record per move, and
// returns the count and total bytes moved.
func CollectExecFetchResults(scratchDir, incomingDir string) (int, int64, error) {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return 0, 0, fmt.Errorf("worker: exec-fetch read scratch: %w", err)
	}

	var count int
	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return count, total, err
		}
		src := filepath.Join(scratchDir, entry.Name())
		dst := filepath.Join(incomingDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return count, total, fmt.Errorf("worker: exec-fetch move %s: %w", entry.Name(), err)
		}
		fs.Logf(incomingDir, "worker: retrieved %s (%d bytes)", entry.Name(), info.Size())
		count++
		total += info.Size()
	}

	if err := os.Remove(scratchDir); err != nil {
		fs.Debugf(scratchDir, "worker: exec-fetch scratch cleanup: %v", err)
	}
	return count, total, nil
}
