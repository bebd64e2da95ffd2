// Command gfxxx is the fetch-worker binary: one invocation decodes its
// arguments, attaches to a single FSA position,
// and drives either the exec flavour (a spawned command populates an
// incoming directory) or the protocol-listing flavour (FTP/SFTP
// directory listing compared against the directory's retrieve list) of
// one inbound-fetch job.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/exitcode"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/protocol"
	"github.com/rclone/filerelay/status"
	"github.com/rclone/filerelay/worker"
)

func main() {
	root := &cobra.Command{
		Use:                "gfxxx <work_dir> <job_no> <fsa_id> <fsa_pos> <dir_id> [options]",
		Short:              "Fetch queued files from a remote directory",
		DisableFlagParsing: true,
		RunE:               run,
	}
	if err := root.Execute(); err != nil {
		fs.Errorf(nil, "gfxxx: %v", err)
		os.Exit(exitcode.Incorrect)
	}
}

func run(cmd *cobra.Command, argv []string) error {
	args, err := worker.ParseArgs(argv)
	if err != nil {
		os.Exit(exitcode.SyntaxError)
	}
	opts, err := worker.ParseOptions(args.Options)
	if err != nil {
		os.Exit(exitcode.SyntaxError)
	}

	tablePath := filepath.Join(args.WorkDir, "fifo_dir", fmt.Sprintf("fsa.stat.%d", args.FSAID))
	table, err := status.Open(tablePath, status.KindFSA)
	if err != nil {
		fs.Errorf(tablePath, "gfxxx: open FSA: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}
	defer table.Close()

	job, err := worker.NewJob(args, opts, table, tablePath, status.KindFSA, nil)
	if err != nil {
		fs.Errorf(tablePath, "gfxxx: attach: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}
	worker.Install(worker.ResetOnFault(job.Table, job.Pos, job.JobNo))

	fsa, err := job.Mapping.ReadFSA()
	if err != nil {
		os.Exit(exitcode.OpenFileDirError)
	}
	// -e bounds how long an established session may idle between polls;
	// the host's keep_connected window applies otherwise.
	keepConnected := time.Duration(fsa.KeepConnected) * time.Second
	if opts.DisconnectIdleSeconds > 0 && opts.DisconnectIdleSeconds < keepConnected {
		keepConnected = opts.DisconnectIdleSeconds
	}

	retrieveDir := envOr("AFD_RETRIEVE_WORK_DIR", filepath.Join(args.WorkDir, "file_dir", "incoming"))

	if command := os.Getenv("AFD_FETCH_COMMAND"); command != "" {
		store, err := lsdata.Attach(args.WorkDir, args.MsgOrDirID, true)
		if err != nil {
			fs.Errorf(args.WorkDir, "gfxxx: ls-data attach: %v", err)
			os.Exit(exitcode.OpenFileDirError)
		}
		defer store.Detach(false)

		err = worker.RunFetchExec(context.Background(), job, store, worker.ExecFetchConfig{
			Adapter:         &protocol.Exec{},
			AdapterOptions:  protocol.Options{Simulation: opts.Simulation},
			Command:         command,
			RetrieveWorkDir: retrieveDir,
			KeepConnected:   keepConnected,
			DisableRetrieve: envBool("AFD_DISABLE_RETRIEVE"),
			TablePath:       tablePath,
			Kind:            status.KindFSA,
		})
		_ = job.Finish()
		os.Exit(worker.ExitCode(err))
		return nil
	}

	adapter, remoteDir, err := selectFetchAdapter(fsa.Protocol)
	if err != nil {
		fs.Errorf(tablePath, "gfxxx: %v", err)
		os.Exit(exitcode.Incorrect)
	}

	store, err := lsdata.Attach(args.WorkDir, args.MsgOrDirID, true)
	if err != nil {
		fs.Errorf(args.WorkDir, "gfxxx: ls-data attach: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}
	defer store.Detach(false)

	var dup *worker.DupCheckStore
	if crcID := os.Getenv("AFD_DUPCHECK_CRC_ID"); crcID != "" {
		dup, err = worker.NewDupCheckStore(args.WorkDir, crcID)
		if err != nil {
			fs.Debugf(args.WorkDir, "gfxxx: dupcheck: %v", err)
		}
	}

	adapterOpts := protocol.Options{
		Host:            worker.ResolveRealHostname(&fsa, opts.ToggleHost),
		Port:            envInt("AFD_HOST_PORT", 21),
		User:            os.Getenv("AFD_HOST_USER"),
		Pass:            os.Getenv("AFD_HOST_PASSWORD"),
		TransferTimeout: time.Duration(fsa.TransferTimeout) * time.Second,
		KeepAlive:       fsa.KeepConnected > 0,
		BlockSize:       int(fsa.BlockSize),
		Simulation:      opts.Simulation,
	}

	err = worker.RunFetchList(context.Background(), job, store, worker.FetchListConfig{
		Adapter:         adapter,
		AdapterOptions:  adapterOpts,
		RemoteDir:       remoteDir,
		LocalDir:        filepath.Join(retrieveDir, args.MsgOrDirID),
		Dup:             dup,
		KeepConnected:   keepConnected,
		DisableRetrieve: envBool("AFD_DISABLE_RETRIEVE"),
		TablePath:       tablePath,
		Kind:            status.KindFSA,
	})
	_ = job.Finish()
	os.Exit(worker.ExitCode(err))
	return nil
}

func selectFetchAdapter(protoMask uint32) (worker.FetchAdapter, string, error) {
	remoteDir := envOr("AFD_REMOTE_DIR", "/")
	switch {
	case protoMask&status.ProtoFTP != 0:
		return worker.FTPRemote{FTP: &protocol.FTP{}}, remoteDir, nil
	case protoMask&status.ProtoSFTP != 0:
		return worker.SFTPRemote{SFTP: &protocol.SFTP{}}, remoteDir, nil
	default:
		return nil, "", fmt.Errorf("host protocol %#x has no directory-listing fetch adapter", protoMask)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	return os.Getenv(key) != ""
}
