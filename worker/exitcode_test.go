package worker

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rclone/filerelay/lib/exitcode"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/status"
)

func TestExitCodeNil(t *testing.T) {
	assert.Equal(t, exitcode.Success, ExitCode(nil))
}

func TestExitCodeSyntaxError(t *testing.T) {
	_, err := ParseArgs([]string{"/a"})
	assert.Equal(t, exitcode.SyntaxError, ExitCode(err))
}

func TestExitCodeWrongTable(t *testing.T) {
	assert.Equal(t, exitcode.OpenFileDirError, ExitCode(status.ErrWrongTable))
}

func TestExitCodeCorruption(t *testing.T) {
	assert.Equal(t, exitcode.Success, ExitCode(lsdata.ErrCorrupt))
}

func TestExitCodeExecFailure(t *testing.T) {
	assert.Equal(t, exitcode.ExecError, ExitCode(ExecFailure(os.ErrInvalid)))
}

func TestExitCodeCancelled(t *testing.T) {
	assert.Equal(t, exitcode.GotKilled, ExitCode(context.Canceled))
}

func TestExitCodeFallback(t *testing.T) {
	assert.Equal(t, exitcode.Incorrect, ExitCode(assert.AnError))
}
