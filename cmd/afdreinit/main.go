// Command afdreinit drives the staged on-disk teardown: given an init
// level (and optionally which typesize fields changed), it removes
// exactly the files and directories that become invalid at that level.
package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/reinit"
)

func main() {
	var workDir string
	var level int
	var maxHostnameLength, maxFilenameLength, offT, timeT bool

	root := &cobra.Command{
		Use:   "afdreinit",
		Short: "Reinitialise on-disk AFD state for an init level",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workDir == "" {
				workDir = os.Getenv("AFD_WORK_DIR")
			}
			r := &reinit.Reinitialiser{
				WorkDir:    workDir,
				SaveStatus: saveStatus,
			}
			changed := reinit.TypesizeChange{
				MaxHostnameLength: maxHostnameLength,
				MaxFilenameLength: maxFilenameLength,
				OffT:              offT,
				TimeT:             timeT,
			}
			if err := r.Run(context.Background(), level, changed); err != nil {
				fs.Errorf(workDir, "afdreinit: %v", err)
				return err
			}
			fs.Logf(workDir, "afdreinit: completed level %d", level)
			return nil
		},
	}
	root.Flags().StringVar(&workDir, "work-dir", "", "AFD work directory (default: $AFD_WORK_DIR)")
	root.Flags().IntVar(&level, "level", 0, "init level to reinitialise to")
	root.Flags().BoolVar(&maxHostnameLength, "changed-max-hostname-length", false, "MAX_HOSTNAME_LENGTH changed")
	root.Flags().BoolVar(&maxFilenameLength, "changed-max-filename-length", false, "MAX_FILENAME_LENGTH changed")
	root.Flags().BoolVar(&offT, "changed-off-t", false, "OFF_T changed")
	root.Flags().BoolVar(&timeT, "changed-time-t", false, "TIME_T changed")

	if err := root.Execute(); err != nil {
		fs.Errorf(nil, "afdreinit: %v", err)
		os.Exit(1)
	}
}

// saveStatus shells out to afdcfg --save_status before an FSA/FRA wipe,
// persisting user-visible configuration flags that would otherwise be
// lost. afdcfg is an external collaborator; its absence or failure is
// logged but never blocks the reinitialisation itself.
func saveStatus(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "afdcfg", "--save_status")
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		fs.Debugf("afdcfg", "afdreinit: save_status: %v: %s", err, out)
	}
	return nil
}
