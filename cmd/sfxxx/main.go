// Command sfxxx is the send-worker binary: one invocation decodes its
// arguments, attaches to a single FSA position,
// drives one outbound-transfer burst over the host's configured
// protocol, and exits with the status code the scheduler inspects to
// decide on a retry.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/exitcode"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/protocol"
	"github.com/rclone/filerelay/status"
	"github.com/rclone/filerelay/trl"
	"github.com/rclone/filerelay/worker"
)

var (
	flagTRLFile  string
	flagSendDir  string
	flagPort     int
	flagUser     string
	flagPassword string
)

func main() {
	root := &cobra.Command{
		Use:                "sfxxx <work_dir> <job_no> <fsa_id> <fsa_pos> <msg_id> [options]",
		Short:              "Send one burst of queued files to a remote host",
		DisableFlagParsing: true, // argv grammar is own, not pflag's
		RunE:               run,
	}
	if err := root.Execute(); err != nil {
		fs.Errorf(nil, "sfxxx: %v", err)
		os.Exit(exitcode.Incorrect)
	}
}

func run(cmd *cobra.Command, argv []string) error {
	// Pull the small set of connection parameters this binary needs
	// that leaves to the (out of scope) configuration-file
	// parser: the scheduler/DIR_CONFIG normally injects these via
	// environment, config parsing itself is an external collaborator.
	flagSendDir = os.Getenv("AFD_SEND_DIR")
	flagTRLFile = envOr("AFD_TRL_FILE", "")
	flagPort = envInt("AFD_HOST_PORT", 21)
	flagUser = os.Getenv("AFD_HOST_USER")
	flagPassword = os.Getenv("AFD_HOST_PASSWORD")

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
		fs.Errorf(tablePath, "sfxxx: open FSA: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}
	defer table.Close()

	var engine *trl.Engine
	if flagTRLFile != "" {
		engine = trl.NewEngine(flagTRLFile, &status.TRLHostProvider{Table: table})
		if err := engine.InitTRLData(); err != nil {
			fs.Debugf(flagTRLFile, "sfxxx: trl init: %v", err)
			engine = nil
		}
	}

	job, err := worker.NewJob(args, opts, table, tablePath, status.KindFSA, engine)
	if err != nil {
		fs.Errorf(tablePath, "sfxxx: attach: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}

	worker.Install(worker.ResetOnFault(job.Table, job.Pos, job.JobNo))

	fsa, err := job.Mapping.ReadFSA()
	if err != nil {
		os.Exit(exitcode.OpenFileDirError)
	}

	adapter, active := selectAdapter(fsa.Protocol)
	if adapter == nil {
		fs.Errorf(tablePath, "sfxxx: host has no recognised protocol bit set")
		os.Exit(exitcode.Incorrect)
	}
	if smtpAdapter, ok := adapter.(*protocol.SMTP); ok {
		var recipients []string
		for _, to := range strings.Split(os.Getenv("AFD_SMTP_RECIPIENTS"), ",") {
			if to = strings.TrimSpace(to); to != "" {
				recipients = append(recipients, to)
			}
		}
		smtpAdapter.Envelope = protocol.SMTPMessage{
			From:    opts.SMTPFrom,
			To:      recipients,
			ReplyTo: opts.SMTPReplyTo,
			Charset: opts.Charset,
		}
		if opts.GroupMailDomain != "" {
			for i, to := range smtpAdapter.Envelope.To {
				if !strings.Contains(to, "@") {
					smtpAdapter.Envelope.To[i] = protocol.GroupAddress(to, opts.GroupMailDomain)
				}
			}
		}
	}

	sendDir := flagSendDir
	if sendDir == "" {
		sendDir = filepath.Join(args.WorkDir, "file_dir", "outgoing", args.MsgOrDirID)
	}
	files, err := worker.NewDirFileSource(sendDir, opts.AgeLimit)
	if err != nil {
		fs.Errorf(sendDir, "sfxxx: list: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}

	var dup *worker.DupCheckStore
	if crcID := os.Getenv("AFD_DUPCHECK_CRC_ID"); crcID != "" {
		dup, err = worker.NewDupCheckStore(args.WorkDir, crcID)
		if err != nil {
			fs.Debugf(args.WorkDir, "sfxxx: dupcheck: %v", err)
		}
	}

	store, err := lsdata.Attach(args.WorkDir, args.MsgOrDirID, true)
	if err != nil {
		fs.Errorf(args.WorkDir, "sfxxx: ls-data attach: %v", err)
		os.Exit(exitcode.OpenFileDirError)
	}
	defer store.Detach(false)

	adapterOpts := protocol.Options{
		Host:            hostname(fsa),
		Port:            flagPort,
		User:            flagUser,
		Pass:            flagPassword,
		TransferTimeout: time.Duration(fsa.TransferTimeout) * time.Second,
		KeepAlive:       fsa.KeepConnected > 0,
		BlockSize:       int(fsa.BlockSize),
		Proxy:           opts.HTTPProxy,
		Simulation:      opts.Simulation,
	}
	if opts.SMTPServer != "" {
		adapterOpts.Host, adapterOpts.Port = splitHostPort(opts.SMTPServer, 25)
	}

	// -e bounds how long an established session may idle between
	// bursts; the host's keep_connected window applies otherwise.
	keepConnected := time.Duration(fsa.KeepConnected) * time.Second
	if opts.DisconnectIdleSeconds > 0 && opts.DisconnectIdleSeconds < keepConnected {
		keepConnected = opts.DisconnectIdleSeconds
	}

	err = worker.RunSend(context.Background(), job, store, worker.SendConfig{
		Adapter:         adapter,
		AdapterOptions:  adapterOpts,
		Active:          active,
		Files:           files,
		Dup:             dup,
		KeepConnected:   keepConnected,
		DisableRetrieve: false,
		TablePath:       tablePath,
		Kind:            status.KindFSA,
	})
	_ = job.Finish()
	os.Exit(worker.ExitCode(err))
	return nil
}

func selectAdapter(protoMask uint32) (protocol.Adapter, status.ConnectStatus) {
	ordinal := status.ProtocolOrdinal(protoMask)
	if ordinal < 0 {
		return nil, status.Disconnect
	}
	active := status.ProtocolActive(ordinal)
	switch {
	case protoMask&status.ProtoFTP != 0:
		return &protocol.FTP{}, active
	case protoMask&status.ProtoSFTP != 0:
		return &protocol.SFTP{}, active
	case protoMask&status.ProtoHTTP != 0:
		return &protocol.HTTP{}, active
	case protoMask&status.ProtoSMTP != 0:
		return &protocol.SMTP{}, active
	case protoMask&status.ProtoWMO != 0:
		return &protocol.WMO{}, active
	case protoMask&status.ProtoLOC != 0:
		return &protocol.LOC{}, active
	default:
		return nil, status.Disconnect
	}
}

func hostname(fsa status.FSARecord) string {
	return worker.ResolveRealHostname(&fsa, false)
}

// splitHostPort splits a "host[:port]" option value, falling back to
// defPort when no port is given.
func splitHostPort(s string, defPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return s, defPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defPort
	}
	return host, port
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
