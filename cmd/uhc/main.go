// Command uhc requests a HOST_CONFIG reload from the running manager,
// the same protocol as udc with a different opcode.
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
		Use:   "uhc",
		Short: "Request a HOST_CONFIG reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				workDir = os.Getenv("AFD_WORK_DIR")
			}
			reply, err := dbupdate.Send(context.Background(), workDir, dbupdate.OpcodeHostConfigUpdate, dbupdate.DefaultTimeout)
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
