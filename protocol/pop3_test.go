package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseStatReply is scenario #4: "+OK 5 12345\r\n" parses
// to (count=5, size=12345).
func TestParseStatReply(t *testing.T) {
	count, size, err := parseStatReply("+OK 5 12345")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, int64(12345), size)
}

func TestParseStatReplyError(t *testing.T) {
	_, _, err := parseStatReply("-ERR no mailbox")
	assert.Error(t, err)
}

func TestReadDotTerminatedUnstuffsLeadingDot(t *testing.T) {
	raw := "Subject: test\r\n..leading dot line\r\nplain line\r\n.\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	body, err := readDotTerminated(r)
	require.NoError(t, err)
	assert.Equal(t, "Subject: test\r\n.leading dot line\r\nplain line\r\n", string(body))
}

func TestReadDotTerminatedStopsAtBareDot(t *testing.T) {
	raw := "line one\r\n.\r\nnot part of message\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	body, err := readDotTerminated(r)
	require.NoError(t, err)
	assert.Equal(t, "line one\r\n", string(body))
}
