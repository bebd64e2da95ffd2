package worker

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/atexit"
	"github.com/rclone/filerelay/status"
)

// SignalHandlers installs the worker's signal discipline: SIGINT/
// SIGTERM/SIGQUIT run the normal reset-and-exit path through atexit,
// SIGHUP/SIGPIPE are ignored, and SIGSEGV/SIGBUS run a best-effort
// reset before the process is allowed to die with its default fatal
// disposition.
//
// Async-signal-unsafe cleanup inside a SEGV/BUS handler is unsound, so
// this handler stays minimal, one best-effort FSA write with no locking
// and no allocation beyond what ResetFSA already needs, and always
// re-raises the signal afterwards so the OS-level fatal behaviour
// (core dump, correct exit status) still applies.
type SignalHandlers struct {
	once sync.Once
	ch   chan os.Signal
}

// Install registers the handlers described above. resetFn is called at
// most once, from the SIGSEGV/SIGBUS path, to reset pos to Faulty
// before the process is allowed to terminate; it must not block.
func Install(resetFn func()) *SignalHandlers {
	h := &SignalHandlers{ch: make(chan os.Signal, 4)}

	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	signal.Notify(h.ch, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range h.ch {
			fs.Logf(nil, "worker: received %v, running graceful shutdown", sig)
			atexit.Run()
			os.Exit(128 + int(sig.(syscall.Signal)))
		}
	}()

	faultCh := make(chan os.Signal, 2)
	signal.Notify(faultCh, syscall.SIGSEGV, syscall.SIGBUS)
	go func() {
		sig := <-faultCh
		h.once.Do(func() {
			fs.Errorf(nil, "worker: received %v, resetting FSA before terminating", sig)
			if resetFn != nil {
				resetFn()
			}
		})
		signal.Reset(sig.(syscall.Signal))
		_ = syscall.Kill(os.Getpid(), sig.(syscall.Signal))
	}()

	return h
}

// ResetOnFault builds the resetFn Install expects: a direct,
// non-blocking best-effort ResetFSA(Faulty, 0, 0) call against pos, so
// a crashing worker leaves the slot marked NOT_WORKING while the core
// dump is preserved.
func ResetOnFault(table *status.Table, pos int, jobNo int) func() {
	return func() {
		_ = ResetFSA(table, pos, jobNo, ResetFaulty, 0, 0)
	}
}
