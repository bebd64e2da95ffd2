// Command dccorrelator runs the DEMCD-style confirmation correlator as
// a long-lived daemon: it ingests inbound confirmation records from a
// command FIFO, matches them against an outbound mail log, and expires
// anything that has waited past its time-up.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rclone/filerelay/confirm"
	"github.com/rclone/filerelay/fs"
)

func main() {
	var workDir string
	var timeUp time.Duration

	root := &cobra.Command{
		Use:   "dccorrelator",
		Short: "Run the confirmation correlator daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				workDir = os.Getenv("AFD_WORK_DIR")
			}
			fifoDir := filepath.Join(workDir, "fifo_dir")
			if err := os.MkdirAll(fifoDir, 0755); err != nil {
				return err
			}

			queuePath := filepath.Join(fifoDir, "demcd_queue")
			q, err := confirm.Open(queuePath)
			if err != nil {
				fs.Fatalf(queuePath, "dccorrelator: open queue: %v", err)
			}
			defer q.Close()

			fifoPath := filepath.Join(fifoDir, "demcd_fifo")
			if err := confirm.CreateFIFO(fifoPath, 0600); err != nil {
				fs.Fatalf(fifoPath, "dccorrelator: create fifo: %v", err)
			}
			mailPath := filepath.Join(workDir, "etc", "demcd_mail")

			c := confirm.NewCorrelator(q, fifoPath, mailPath, timeUp)
			defer c.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fs.Logf(fifoPath, "dccorrelator: shutting down")
				cancel()
			}()

			fs.Logf(fifoPath, "dccorrelator: running, time_up=%s", timeUp)
			if err := c.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	root.Flags().StringVar(&workDir, "work-dir", "", "AFD work directory (default: $AFD_WORK_DIR)")
	root.Flags().DurationVar(&timeUp, "time-up", 2*time.Hour, "confirmation expiry window")

	if err := root.Execute(); err != nil {
		fs.Errorf(nil, "dccorrelator: %v", err)
		os.Exit(1)
	}
}
