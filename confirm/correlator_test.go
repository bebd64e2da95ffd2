package confirm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMailLineAck(t *testing.T) {
	alias, name, typ, err := ParseMailLine("host-a report.csv ACK")
	require.NoError(t, err)
	assert.Equal(t, "host-a", alias)
	assert.Equal(t, "report.csv", name)
	assert.Equal(t, Ack, typ)
}

func TestParseMailLineNack(t *testing.T) {
	_, _, typ, err := ParseMailLine("host-b report.csv nack")
	require.NoError(t, err)
	assert.Equal(t, Nack, typ)
}

func TestParseMailLineMalformed(t *testing.T) {
	_, _, _, err := ParseMailLine("not enough fields")
	assert.ErrorIs(t, err, ErrMalformedMailLine)
}

func TestIngestFIFOBytesBuffersPartialRecord(t *testing.T) {
	q := newTestQueue(t)
	c := NewCorrelator(q, "", "", time.Minute)

	var e Entry
	e.SetFileName("whole.dat")
	e.LogTime = time.Now().Unix()
	full := encodeEntry(e)

	require.NoError(t, c.ingestFIFOBytes(full[:EntrySize-1]))
	assert.Equal(t, 0, q.Len())

	require.NoError(t, c.ingestFIFOBytes(full[EntrySize-1:]))
	assert.Equal(t, 1, q.Len())
	got, err := q.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "whole.dat", got.FileNameString())
}

func TestIngestFIFOBytesMultipleRecordsInOneRead(t *testing.T) {
	q := newTestQueue(t)
	c := NewCorrelator(q, "", "", time.Minute)

	var e1, e2 Entry
	e1.SetFileName("first.dat")
	e1.LogTime = time.Now().Unix()
	e2.SetFileName("second.dat")
	e2.LogTime = time.Now().Unix()

	data := append(encodeEntry(e1), encodeEntry(e2)...)
	require.NoError(t, c.ingestFIFOBytes(data))
	assert.Equal(t, 2, q.Len())
}

func TestTickMatchesMailLineAgainstQueueHead(t *testing.T) {
	q := newTestQueue(t)
	var e Entry
	e.SetFileName("report.csv")
	e.SetAliasName("host-a")
	e.LogTime = time.Now().Unix()
	_, err := q.Append(e)
	require.NoError(t, err)

	mailPath := filepath.Join(t.TempDir(), "mail")
	require.NoError(t, os.WriteFile(mailPath, []byte("host-a report.csv ACK\n"), 0644))

	c := NewCorrelator(q, filepath.Join(t.TempDir(), "missing_fifo"), mailPath, time.Minute)
	defer c.Close()

	matched, timedUp, err := c.Tick(time.Now())
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "report.csv", matched[0].FileNameString())
	assert.Empty(t, timedUp)
	assert.Equal(t, 0, q.Len())
}

func TestTickReopensMailFileOnInodeChange(t *testing.T) {
	q := newTestQueue(t)
	mailPath := filepath.Join(t.TempDir(), "mail")
	require.NoError(t, os.WriteFile(mailPath, []byte("host-a a.dat ACK\n"), 0644))

	c := NewCorrelator(q, filepath.Join(t.TempDir(), "missing_fifo"), mailPath, time.Minute)
	defer c.Close()

	_, _, err := c.Tick(time.Now())
	require.NoError(t, err)

	require.NoError(t, os.Remove(mailPath))
	require.NoError(t, os.WriteFile(mailPath, []byte("host-b b.dat ACK\n"), 0644))

	var e Entry
	e.SetFileName("b.dat")
	e.SetAliasName("host-b")
	e.LogTime = time.Now().Unix()
	_, err = q.Append(e)
	require.NoError(t, err)

	matched, _, err := c.Tick(time.Now())
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "b.dat", matched[0].FileNameString())
}

func TestTickLogsTimeupForExpiredEntries(t *testing.T) {
	q := newTestQueue(t)
	var e Entry
	e.SetFileName("expired.dat")
	e.LogTime = time.Now().Add(-time.Hour).Unix()
	_, err := q.Append(e)
	require.NoError(t, err)

	c := NewCorrelator(q, filepath.Join(t.TempDir(), "missing_fifo"), filepath.Join(t.TempDir(), "missing_mail"), time.Minute)
	defer c.Close()

	_, timedUp, err := c.Tick(time.Now())
	require.NoError(t, err)
	require.Len(t, timedUp, 1)
	assert.Equal(t, "expired.dat", timedUp[0].FileNameString())
	assert.Equal(t, 0, q.Len())
}
