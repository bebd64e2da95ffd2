// Package atexit registers functions to run when the process exits, either
// normally or in response to SIGINT/SIGTERM, and computes the POSIX exit
// code for a received signal so daemons can propagate it accurately.
package atexit

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rclone/filerelay/lib/exitcode"
)

var (
	mu      sync.Mutex
	fns     = map[*funcHandle]struct{}{}
	sigChan = make(chan os.Signal, 1)
	once    sync.Once
	ranOnce sync.Once
)

// FnHandle is the handle for a registered exit function, used to
// unregister it with Unregister.
type FnHandle = *funcHandle

type funcHandle struct {
	fn func()
}

// Register a function to run when the program exits, either normally or
// via a signal. Returns a handle that can be passed to Unregister.
func Register(fn func()) FnHandle {
	mu.Lock()
	defer mu.Unlock()
	h := &funcHandle{fn: fn}
	fns[h] = struct{}{}
	once.Do(start)
	return h
}

// Unregister removes a previously registered function.
func Unregister(h FnHandle) {
	mu.Lock()
	defer mu.Unlock()
	delete(fns, h)
}

// IgnoreSIGHUP makes this process ignore SIGHUP. Some daemons in this
// runtime are started under a controlling terminal that goes away under
// normal shutdown sequencing; SIGHUP in that case should not be fatal.
func IgnoreSIGHUP() {
	signal.Ignore(syscall.SIGHUP)
}

func start() {
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		ranOnce.Do(runHandlers)
		os.Exit(exitCode(sig))
	}()
}

// Run runs all the registered exit handlers. Safe to call more than once;
// only the first call has effect.
func Run() {
	ranOnce.Do(runHandlers)
}

func runHandlers() {
	mu.Lock()
	handles := make([]FnHandle, 0, len(fns))
	for h := range fns {
		handles = append(handles, h)
	}
	mu.Unlock()
	for _, h := range handles {
		h.fn()
	}
}

// exitCode returns the conventional shell exit code for a process killed
// by sig: 128+signal number for real, portable POSIX signals, and
// exitcode.UncategorizedError for anything else (including on platforms
// where os.Signal doesn't map to a fixed number).
func exitCode(sig os.Signal) int {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return exitcode.UncategorizedError
	}
	if s <= 0 {
		return exitcode.UncategorizedError
	}
	return 128 + int(s)
}
