package protocol

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Exec implements Adapter for the external-command protocol. The
// environment is passed as an explicit map and the working directory via
// exec.Cmd.Dir, never by concatenating a shell string, eliminating the
// quoting hazards of a hand-built "AFD_HC_TIMEOUT=...;export ...; cd
// ...; <cmd>" prelude while preserving the same exported variable
// contract.
type Exec struct {
	opts   Options
	cmd    string
	env    []string
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// EnvPrelude builds the AFD_HC_TIMEOUT/AFD_HC_BLOCKSIZE/
// AFD_CURRENT_HOSTNAME environment entries requires every
// exec job to receive.
func EnvPrelude(opts Options) []string {
	return []string{
		fmt.Sprintf("AFD_HC_TIMEOUT=%d", int(opts.TransferTimeout.Seconds())),
		fmt.Sprintf("AFD_HC_BLOCKSIZE=%d", opts.BlockSize),
		fmt.Sprintf("AFD_CURRENT_HOSTNAME=%s", opts.Host),
	}
}

// Connect records the options; the command itself is supplied to Run.
func (a *Exec) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	a.env = append(os.Environ(), EnvPrelude(opts)...)
	return nil
}

// Auth is a no-op; EXEC has no protocol-level authentication.
func (a *Exec) Auth(ctx context.Context) error { return nil }

// Run executes command in dir with the AFD_* environment prelude
// applied, honouring opts.TransferTimeout via ctx cancellation, and
// returns its stdout (stderr is only included in the error on failure).
func (a *Exec) Run(ctx context.Context, command string, dir string) ([]byte, error) {
	a.cmd = command
	a.dir = dir
	if a.opts.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.TransferTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = a.env
	cmd.Dir = dir
	a.stdout.Reset()
	a.stderr.Reset()
	cmd.Stdout = &a.stdout
	cmd.Stderr = &a.stderr

	if err := cmd.Run(); err != nil {
		return a.stdout.Bytes(), fmt.Errorf("exec: %s: %w (stderr: %s)", command, err, a.stderr.String())
	}
	return a.stdout.Bytes(), nil
}

// Read/Write are present to satisfy Adapter; EXEC has no byte-stream
// transfer of its own, only the stdout captured by Run.
func (a *Exec) Read(buf []byte) (int, error)  { return 0, fmt.Errorf("exec: use Run") }
func (a *Exec) Write(buf []byte) (int, error) { return 0, fmt.Errorf("exec: use Run") }

// Quit is a no-op; the subprocess has already exited by the time Run
// returns.
func (a *Exec) Quit(ctx context.Context) error { return nil }

// TimeoutFlag is always Off; EXEC timeouts are enforced via ctx
// cancellation in Run, not a socket deadline.
func (a *Exec) TimeoutFlag() TimeoutFlag { return TimeoutOff }
