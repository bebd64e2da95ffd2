// Command udc requests a DIR_CONFIG reload from the running manager: it
// posts an opcode+pid request on the db_update FIFO, waits for the
// per-PID reply, prints it, and exits with the reply code.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rclone/filerelay/lib/dbupdate"
)

func main() {
	var workDir string
	root := &cobra.Command{
		Use:   "udc",
		Short: "Request a DIR_CONFIG reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				workDir = os.Getenv("AFD_WORK_DIR")
			}
			reply, err := dbupdate.Send(context.Background(), workDir, dbupdate.OpcodeDirConfigUpdate, dbupdate.DefaultTimeout)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(dbupdate.ReplyInternal)
			}
			if reply.Summary != "" {
				fmt.Println(reply.Summary)
			}
			os.Exit(reply.Code)
			return nil
		},
	}
	root.Flags().StringVar(&workDir, "work-dir", "", "AFD work directory (default: $AFD_WORK_DIR)")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(dbupdate.ReplyInternal)
	}
}
