package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/jlaffaye/ftp"
	"github.com/rclone/filerelay/fs"
)

// FTP implements Adapter over github.com/jlaffaye/ftp.
type FTP struct {
	opts Options
	conn *ftp.ServerConn
	resp *ftp.Response // current RETR/STOR stream, if any
	flag TimeoutFlag
}

// Connect dials the FTP control connection, optionally upgrading to TLS
// and honoring the configured connect timeout.
func (a *FTP) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	var tlsConfig *tls.Config
	if opts.TLS {
		tlsConfig = &tls.Config{ServerName: opts.Host}
	}

	dialOpts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if opts.TLS {
		dialOpts = append(dialOpts, ftp.DialWithTLS(tlsConfig))
	}
	if opts.ConnectTimeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(opts.ConnectTimeout))
	}

	if opts.Simulation {
		fs.Debugf(opts.Host, "ftp: simulation mode, skipping dial")
		return nil
	}

	c, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		a.flag = classifyTimeout(err)
		return fmt.Errorf("ftp: dial %s: %w", addr, err)
	}
	a.conn = c
	a.flag = TimeoutOff
	return nil
}

// Auth logs in with the user/pass carried on Options.
func (a *FTP) Auth(ctx context.Context) error {
	if a.opts.Simulation {
		return nil
	}
	if err := a.conn.Login(a.opts.User, a.opts.Pass); err != nil {
		return fmt.Errorf("ftp: login: %w", err)
	}
	return nil
}

// Retrieve opens the named remote file for streamed reading starting at
// offset.
func (a *FTP) Retrieve(name string, offset uint64) (io.ReadCloser, error) {
	resp, err := a.conn.RetrFrom(name, offset)
	if err != nil {
		return nil, fmt.Errorf("ftp: retr %s: %w", name, err)
	}
	a.resp = resp
	return resp, nil
}

// Store uploads r to the named remote file.
func (a *FTP) Store(name string, r io.Reader) error {
	if a.opts.Simulation {
		_, err := io.Copy(io.Discard, r)
		return err
	}
	if err := a.conn.Stor(name, r); err != nil {
		return fmt.Errorf("ftp: stor %s: %w", name, err)
	}
	return nil
}

// StoreFile implements FileStorer via a single STOR.
func (a *FTP) StoreFile(ctx context.Context, name string, data []byte) error {
	return a.Store(name, bytes.NewReader(data))
}

// List returns the remote directory's entries, used to populate the
// retrieve list (lsdata.Store).
func (a *FTP) List(dir string) ([]*ftp.Entry, error) {
	entries, err := a.conn.List(dir)
	if err != nil {
		return nil, fmt.Errorf("ftp: list %s: %w", dir, err)
	}
	return entries, nil
}

// Read is present to satisfy Adapter; FTP's data stream is accessed via
// Retrieve/Store instead since it needs a per-file io.ReadCloser.
func (a *FTP) Read(buf []byte) (int, error) {
	if a.resp == nil {
		return 0, fmt.Errorf("ftp: no active retrieve stream")
	}
	n, err := a.resp.Read(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// Write is present to satisfy Adapter; see Read.
func (a *FTP) Write(buf []byte) (int, error) {
	return 0, fmt.Errorf("ftp: use Store for uploads")
}

// Quit closes the control connection gracefully.
func (a *FTP) Quit(ctx context.Context) error {
	if a.opts.Simulation || a.conn == nil {
		return nil
	}
	if a.resp != nil {
		a.resp.Close()
		a.resp = nil
	}
	return a.conn.Quit()
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *FTP) TimeoutFlag() TimeoutFlag { return a.flag }
