package protocol

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rclone/filerelay/fs"
)

// WMOReplyLen is the fixed length of a WMO acknowledgement frame.
const WMOReplyLen = 10

// WMO reply frame contents.
const (
	wmoPositiveAck = "00000000AK"
	wmoNegativeAck = "00000000NA"
)

// WMOReply is the outcome of WMO.CheckReply.
type WMOReply int

// WMOReply values.
const (
	WMOAcknowledge WMOReply = iota
	WMONegativeAcknowledge
	WMOUnexpectedReply
)

// WMO implements Adapter over a plain TCP socket with optional IPv6
// resolution: Write sends a framed block and CheckReply reads exactly
// 10 bytes back as the acknowledgment frame.
type WMO struct {
	opts Options
	conn net.Conn
	flag TimeoutFlag
}

// Connect resolves host (which may need IPv6 resolution, handled
// transparently by net.Dialer/net.Resolver) and dials the TCP peer,
// with WMO's own simulation mode writing to /dev/null instead of a
// real socket.
func (a *WMO) Connect(ctx context.Context, opts Options) error {
	a.opts = opts
	if opts.Simulation {
		fs.Debugf(opts.Host, "wmo: simulation mode, writing to /dev/null")
		return nil
	}

	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	if opts.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}
	conn, err := dialTCP(ctx, dialer, addr)
	if err != nil {
		a.flag = classifyTimeout(err)
		return err
	}
	a.conn = conn
	a.flag = TimeoutOff
	return nil
}

// Auth is a no-op: WMO has no authentication step of its own.
func (a *WMO) Auth(ctx context.Context) error { return nil }

// Write sends a framed block to the peer.
func (a *WMO) Write(buf []byte) (int, error) {
	if a.opts.Simulation {
		return len(buf), nil
	}
	if err := applyIdleDeadline(a.conn, a.opts.TransferTimeout); err != nil {
		return 0, err
	}
	n, err := a.conn.Write(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// Read reads raw bytes from the peer.
func (a *WMO) Read(buf []byte) (int, error) {
	if a.opts.Simulation {
		return 0, io.EOF
	}
	if err := applyIdleDeadline(a.conn, a.opts.TransferTimeout); err != nil {
		return 0, err
	}
	n, err := a.conn.Read(buf)
	a.flag = classifyTimeout(err)
	return n, err
}

// CheckReply reads exactly WMOReplyLen bytes and classifies the result
// as positive/negative acknowledge, logging anything else as a
// hex-escaped snippet for diagnosis.
func (a *WMO) CheckReply() (WMOReply, error) {
	if a.opts.Simulation {
		return WMOAcknowledge, nil
	}
	buf := make([]byte, WMOReplyLen)
	if err := applyIdleDeadline(a.conn, a.opts.TransferTimeout); err != nil {
		return WMOUnexpectedReply, err
	}
	if _, err := io.ReadFull(a.conn, buf); err != nil {
		a.flag = classifyTimeout(err)
		return WMOUnexpectedReply, err
	}
	return classifyWMOReply(buf), nil
}

// classifyWMOReply interprets a 10-byte WMO reply frame.
func classifyWMOReply(buf []byte) WMOReply {
	s := string(buf)
	switch s {
	case wmoPositiveAck:
		return WMOAcknowledge
	case wmoNegativeAck:
		return WMONegativeAcknowledge
	default:
		fs.Errorf(nil, "wmo: unexpected reply frame: %s", hex.EncodeToString(buf))
		return WMOUnexpectedReply
	}
}

// Quit closes the socket.
func (a *WMO) Quit(ctx context.Context) error {
	if a.opts.Simulation || a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// TimeoutFlag reports the last classified I/O outcome.
func (a *WMO) TimeoutFlag() TimeoutFlag { return a.flag }
