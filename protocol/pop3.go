package protocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// POP3State is the adapter's session state machine.
type POP3State int

// POP3 states.
const (
	POP3Disconnected POP3State = iota
	POP3Connected
	POP3Authenticated
	POP3Transaction
)

// POP3 implements Adapter plus the protocol-specific
// STAT/RETR/DELE commands over net/textproto, turning a -ERR reply into
// an error that carries the reply line.
type POP3 struct {
	opts Options
	conn net.Conn
	text *textproto.Conn
	r    *bufio.Reader
	st   POP3State
	flag TimeoutFlag
}

// State returns the adapter's current protocol state.
func (a *POP3) State() POP3State { return a.st }

// Connect dials the POP3 control connection.
func (a *POP3) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	if opts.Simulation {
		a.st = POP3Connected
		return nil
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: keepAliveDuration(opts)}
	conn, err := dialTCP(ctx, dialer, addr)
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}
	if opts.TLS {
		conn = tls.Client(conn, &tls.Config{ServerName: opts.Host})
	}
	a.conn = conn
	a.text = textproto.NewConn(conn)
	a.r = bufio.NewReader(conn)

	if _, err := a.text.ReadLine(); err != nil { // greeting
		a.flag = classifyTimeout(err)
		return fmt.Errorf("pop3: greeting: %w", err)
	}
	a.st = POP3Connected
	a.flag = TimeoutOff
	return nil
}

// Auth runs USER/PASS.
func (a *POP3) Auth(ctx context.Context) error {
	if a.opts.Simulation {
		a.st = POP3Authenticated
		return nil
	}
	if err := a.command("USER %s", a.opts.User); err != nil {
		return err
	}
	if err := a.command("PASS %s", a.opts.Pass); err != nil {
		return err
	}
	a.st = POP3Authenticated
	return nil
}

// command sends a command line and reads a single +OK/-ERR reply.
func (a *POP3) command(format string, args ...interface{}) error {
	id, err := a.text.Cmd(format, args...)
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}
	a.text.StartResponse(id)
	defer a.text.EndResponse(id)
	line, err := a.text.ReadLine()
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}
	if strings.HasPrefix(line, "-ERR") {
		return fmt.Errorf("pop3: %s", line)
	}
	return nil
}

// Stat issues STAT and parses "+OK <count> <size>".
func (a *POP3) Stat() (count int, size int64, err error) {
	id, err := a.text.Cmd("STAT")
	if err != nil {
		a.flag = classifyTimeout(err)
		return 0, 0, err
	}
	a.text.StartResponse(id)
	defer a.text.EndResponse(id)
	line, err := a.text.ReadLine()
	if err != nil {
		a.flag = classifyTimeout(err)
		return 0, 0, err
	}
	count, size, err = parseStatReply(line)
	if err == nil {
		a.st = POP3Transaction
	}
	return count, size, err
}

// parseStatReply parses a STAT reply line of the form "+OK <count>
// <size>".
func parseStatReply(line string) (count int, size int64, err error) {
	if !strings.HasPrefix(line, "+OK") {
		return 0, 0, fmt.Errorf("pop3: stat: %s", line)
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("pop3: malformed stat reply: %q", line)
	}
	count, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("pop3: malformed stat count: %w", err)
	}
	size, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("pop3: malformed stat size: %w", err)
	}
	return count, size, nil
}

// Retr issues "RETR n" and returns the message body with SMTP-style
// byte-stuffing reversed: a leading "." on a line that is not the
// end-of-message marker collapses to a single ".", and the stream ends
// at the bare "." line.
func (a *POP3) Retr(n int) ([]byte, error) {
	id, err := a.text.Cmd("RETR %d", n)
	if err != nil {
		a.flag = classifyTimeout(err)
		return nil, err
	}
	a.text.StartResponse(id)
	defer a.text.EndResponse(id)
	line, err := a.text.ReadLine()
	if err != nil {
		a.flag = classifyTimeout(err)
		return nil, err
	}
	if strings.HasPrefix(line, "-ERR") {
		return nil, fmt.Errorf("pop3: retr %d: %s", n, line)
	}
	body, err := readDotTerminated(a.text.R)
	if err != nil {
		a.flag = classifyTimeout(err)
	}
	return body, err
}

// readDotTerminated reads lines until a bare "." and reverses byte
// stuffing along the way.
func readDotTerminated(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return out, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			return out, nil
		}
		if strings.HasPrefix(trimmed, "..") {
			trimmed = trimmed[1:]
		}
		out = append(out, trimmed...)
		out = append(out, '\r', '\n')
	}
}

// Dele issues "DELE n".
func (a *POP3) Dele(n int) error {
	return a.command("DELE %d", n)
}

// Read is present to satisfy Adapter; POP3 retrieval goes through Retr
// since the body must be dot-unstuffed as a whole message.
func (a *POP3) Read(buf []byte) (int, error) {
	return 0, fmt.Errorf("pop3: use Retr to read messages")
}

// Write is present to satisfy Adapter; POP3 has no upload direction.
func (a *POP3) Write(buf []byte) (int, error) {
	return 0, fmt.Errorf("pop3: write not supported")
}

// Quit issues QUIT and closes the connection.
func (a *POP3) Quit(ctx context.Context) error {
	if a.opts.Simulation || a.text == nil {
		return nil
	}
	_ = a.command("QUIT")
	a.st = POP3Disconnected
	return a.conn.Close()
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *POP3) TimeoutFlag() TimeoutFlag { return a.flag }

func keepAliveDuration(opts Options) time.Duration {
	if opts.KeepAlive {
		return 30 * time.Second
	}
	return -1
}
