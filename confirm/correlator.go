package confirm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rclone/filerelay/fs"
)

// TickInterval is the correlator's tick period.
const TickInterval = 100 * time.Millisecond

// Correlator runs the DEMCD-style confirmation matching loop: it ingests
// fixed-layout records from a command FIFO, matches lines read from an
// outbound-confirmation mail file against the head of the queue, and
// expires entries that have waited longer than TimeUp.
type Correlator struct {
	Queue  *Queue
	TimeUp time.Duration

	fifoPath string
	fifoFile *os.File
	fifoBuf  []byte

	mailPath string
	mailFile *os.File
	mailInfo os.FileInfo
}

// NewCorrelator builds a Correlator over an already-open Queue, reading
// inbound records from fifoPath and outbound confirmation lines from
// mailPath.
func NewCorrelator(q *Queue, fifoPath, mailPath string, timeUp time.Duration) *Correlator {
	return &Correlator{Queue: q, TimeUp: timeUp, fifoPath: fifoPath, mailPath: mailPath}
}

// Tick performs one iteration of loop body: reopen the mail
// file if its inode changed, match every newly available mail line against
// the queue head, ingest any newly available FIFO records, and remove
// everything that has timed out, logging one CL_TIMEUP record per
// timed-up entry. It returns the matched and timed-up entries.
func (c *Correlator) Tick(now time.Time) (matched []Entry, timedUp []Entry, err error) {
	lines, err := c.pollMailFile()
	if err != nil {
		return nil, nil, fmt.Errorf("confirm: poll mail file: %w", err)
	}
	for _, line := range lines {
		alias, name, ackType, perr := ParseMailLine(line)
		if perr != nil {
			fs.Debugf(c.mailPath, "confirm: check_line: %v", perr)
			continue
		}
		ok, e, merr := c.Queue.MatchHead(name, alias, ackType)
		if merr != nil {
			return matched, timedUp, merr
		}
		if ok {
			matched = append(matched, e)
		}
	}

	if err := c.pollFIFO(); err != nil {
		return matched, timedUp, fmt.Errorf("confirm: poll fifo: %w", err)
	}

	timedUp, err = c.Queue.RemoveExpired(now, c.TimeUp)
	if err != nil {
		return matched, timedUp, err
	}
	for _, e := range timedUp {
		fs.Logf(e.AliasNameString(), "CL_TIMEUP: %s timed out after %s", e.FileNameString(), c.TimeUp)
	}
	return matched, timedUp, nil
}

// Run drives Tick on TickInterval until ctx is cancelled.
func (c *Correlator) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			if _, _, err := c.Tick(t); err != nil {
				fs.Errorf(c.fifoPath, "confirm: tick: %v", err)
			}
		}
	}
}

// pollMailFile reopens the mail file if its inode changed since the last
// poll, then returns every complete line appended since the last read
// position.
func (c *Correlator) pollMailFile() ([]string, error) {
	fi, err := os.Stat(c.mailPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.mailFile == nil || c.mailInfo == nil || !os.SameFile(c.mailInfo, fi) {
		if c.mailFile != nil {
			c.mailFile.Close()
		}
		f, err := os.Open(c.mailPath)
		if err != nil {
			return nil, err
		}
		c.mailFile = f
		c.mailInfo = fi
	}

	var lines []string
	reader := bufio.NewReader(c.mailFile)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

// pollFIFO reads as many complete fixed-layout records as are currently
// available from the command FIFO, buffering any trailing partial record
// for the next tick. The read end is opened once and kept open for the
// Correlator's lifetime: a FIFO's read end must stay open so that
// writers opening it for write do not block forever, and so that a
// writer's close doesn't deliver a spurious EOF mid-stream.
func (c *Correlator) pollFIFO() error {
	if c.fifoFile == nil {
		f, err := openFIFONonBlockingRead(c.fifoPath)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		c.fifoFile = f
	}

	buf := make([]byte, 4096)
	n, err := c.fifoFile.Read(buf)
	if err != nil && err != io.EOF && !errors.Is(err, syscall.EAGAIN) {
		return err
	}
	if n == 0 {
		return nil
	}

	return c.ingestFIFOBytes(buf[:n])
}

// ingestFIFOBytes appends newly read FIFO bytes to the partial-record
// buffer and queues every complete fixed-layout record found in it,
// leaving any trailing partial record buffered for the next call. Kept
// separate from pollFIFO so it can be exercised without a real named pipe.
func (c *Correlator) ingestFIFOBytes(data []byte) error {
	c.fifoBuf = append(c.fifoBuf, data...)
	for len(c.fifoBuf) >= EntrySize {
		e, derr := decodeEntry(c.fifoBuf[:EntrySize])
		if derr != nil {
			return derr
		}
		if e.LogTime == 0 {
			e.LogTime = nowUnix()
		}
		if _, aerr := c.Queue.Append(e); aerr != nil {
			return aerr
		}
		c.fifoBuf = c.fifoBuf[EntrySize:]
	}
	return nil
}

// ParseMailLine parses one outbound-confirmation mail line of the form
// "alias file_name ACK" or "alias file_name NACK".
func ParseMailLine(line string) (alias, fileName string, ackType ConfirmationType, err error) {
	fields := bytes.Fields([]byte(line))
	if len(fields) != 3 {
		return "", "", Pending, ErrMalformedMailLine
	}
	alias = string(fields[0])
	fileName = string(fields[1])
	switch strings.ToUpper(string(fields[2])) {
	case "ACK":
		ackType = Ack
	case "NACK":
		ackType = Nack
	default:
		return "", "", Pending, ErrMalformedMailLine
	}
	return alias, fileName, ackType, nil
}

// Close releases the open mail and FIFO file handles, if any.
func (c *Correlator) Close() error {
	var err error
	if c.mailFile != nil {
		err = c.mailFile.Close()
	}
	if c.fifoFile != nil {
		if ferr := c.fifoFile.Close(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}
