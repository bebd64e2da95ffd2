package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTP implements Adapter over github.com/pkg/sftp and
// golang.org/x/crypto/ssh for the dial/auth shape.
type SFTP struct {
	opts    Options
	sshConn *ssh.Client
	client  *sftp.Client
	file    *sftp.File
	flag    TimeoutFlag
}

// Connect dials the SSH transport: a plain net.Dialer wrapped by
// ssh.NewClientConn, with an explicit ConnectTimeout.
func (a *SFTP) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	if opts.Simulation {
		return nil
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.Password(opts.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // the server's host key is not verified
		Timeout:         opts.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialTCP(ctx, dialer, addr)
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		a.flag = classifyTimeout(err)
		return fmt.Errorf("sftp: ssh handshake: %w", err)
	}
	a.sshConn = ssh.NewClient(sshConn, chans, reqs)
	a.flag = TimeoutOff
	return nil
}

// Auth opens the SFTP subsystem; authentication itself already happened
// as part of the SSH handshake in Connect.
func (a *SFTP) Auth(ctx context.Context) error {
	if a.opts.Simulation {
		return nil
	}
	client, err := sftp.NewClient(a.sshConn)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	a.client = client
	return nil
}

// Open opens name for reading, seeking to offset.
func (a *SFTP) Open(name string, offset int64) (io.ReadCloser, error) {
	f, err := a.client.Open(name)
	if err != nil {
		return nil, fmt.Errorf("sftp: open %s: %w", name, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("sftp: seek %s: %w", name, err)
		}
	}
	a.file = f
	return f, nil
}

// Create opens name for writing, creating it if necessary.
func (a *SFTP) Create(name string) (io.WriteCloser, error) {
	f, err := a.client.Create(name)
	if err != nil {
		return nil, fmt.Errorf("sftp: create %s: %w", name, err)
	}
	a.file = f
	return f, nil
}

// StoreFile implements FileStorer: create, write, close.
func (a *SFTP) StoreFile(ctx context.Context, name string, data []byte) error {
	if a.opts.Simulation {
		return nil
	}
	w, err := a.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		a.file = nil
		return fmt.Errorf("sftp: write %s: %w", name, err)
	}
	a.file = nil
	return w.Close()
}

// ReadDir lists a remote directory's entries for the retrieve list.
func (a *SFTP) ReadDir(dir string) ([]sftpDirEntry, error) {
	infos, err := a.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp: readdir %s: %w", dir, err)
	}
	out := make([]sftpDirEntry, 0, len(infos))
	for _, fi := range infos {
		out = append(out, sftpDirEntry{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return out, nil
}

// sftpDirEntry is a minimal remote directory entry, decoupled from
// os.FileInfo so callers outside this package don't need it.
type sftpDirEntry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Read reads from the currently open file.
func (a *SFTP) Read(buf []byte) (int, error) {
	if a.file == nil {
		return 0, fmt.Errorf("sftp: no open file")
	}
	n, err := a.file.Read(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// Write writes to the currently open file.
func (a *SFTP) Write(buf []byte) (int, error) {
	if a.file == nil {
		return 0, fmt.Errorf("sftp: no open file")
	}
	n, err := a.file.Write(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// Quit closes the SFTP client and the underlying SSH connection.
func (a *SFTP) Quit(ctx context.Context) error {
	if a.opts.Simulation {
		return nil
	}
	var err error
	if a.file != nil {
		err = a.file.Close()
		a.file = nil
	}
	if a.client != nil {
		if cerr := a.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.sshConn != nil {
		if cerr := a.sshConn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *SFTP) TimeoutFlag() TimeoutFlag { return a.flag }
