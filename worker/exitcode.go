package worker

import (
	"context"
	"errors"
	"os"

	"github.com/rclone/filerelay/lib/exitcode"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/status"
)

// ExitCode centralises error-to-status-code translation. It is the
// single place mapping the error taxonomy onto concrete exit codes.
//
// status.ErrStale and status.ErrInvalidPosition are not mapped here: a
// generation change is handled inside Job.CheckGeneration, which
// re-attaches or reports the position invalid, and the Run* loops then
// return nil, which maps to exitcode.Success. Either sentinel reaching
// ExitCode falls through to exitcode.Incorrect.
//
// Transient and permanent-remote failures both map to exitcode.Incorrect
// here; the scheduler distinguishes them only by the logged error
// class, not the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}

	var syn *SyntaxError
	if errors.As(err, &syn) {
		return exitcode.SyntaxError
	}

	if errors.Is(err, context.Canceled) {
		return exitcode.GotKilled
	}

	switch {
	case errors.Is(err, status.ErrWrongVersion), errors.Is(err, status.ErrWrongTable):
		return exitcode.OpenFileDirError
	case errors.Is(err, lsdata.ErrCorrupt):
		return exitcode.Success // auto-corrected in place, not fatal
	case errors.Is(err, lsdata.ErrNotAttached), errors.Is(err, lsdata.ErrOutOfRange):
		return exitcode.OpenFileDirError
	}

	if errors.Is(err, os.ErrNotExist) {
		return exitcode.OpenFileDirError
	}
	if errors.Is(err, os.ErrPermission) {
		return exitcode.OpenFileDirError
	}

	var perr *os.PathError
	if errors.As(err, &perr) && perr.Op == "mkdir" {
		return exitcode.MkdirError
	}

	var execErr *execFailure
	if errors.As(err, &execErr) {
		return exitcode.ExecError
	}

	return exitcode.Incorrect
}

// execFailure marks an error as coming from the exec-fetch subprocess
// path so ExitCode can report exitcode.ExecError precisely instead of
// falling back to the generic Incorrect code.
type execFailure struct {
	err error
}

func (e *execFailure) Error() string { return e.err.Error() }
func (e *execFailure) Unwrap() error { return e.err }

// ExecFailure wraps err to mark it as an exec-fetch subprocess failure.
func ExecFailure(err error) error {
	if err == nil {
		return nil
	}
	return &execFailure{err: err}
}
