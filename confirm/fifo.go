package confirm

import (
	"os"
	"syscall"
)

// CreateFIFO makes a named pipe at path if one does not already exist,
// using syscall.Mkfifo directly rather than an external FIFO library.
func CreateFIFO(path string, perm os.FileMode) error {
	if err := syscall.Mkfifo(path, uint32(perm)); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// openFIFONonBlockingRead opens path for non-blocking read, a standard
// O_NONBLOCK FIFO-read idiom so the correlator's tick loop never stalls
// waiting for a writer to connect.
func openFIFONonBlockingRead(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, os.ModeNamedPipe)
}
