package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassifyWMOReply is scenario #5: a ten-byte
// "00000000NA" reply classifies as NegativeAcknowledge.
func TestClassifyWMOReply(t *testing.T) {
	assert.Equal(t, WMOAcknowledge, classifyWMOReply([]byte(wmoPositiveAck)))
	assert.Equal(t, WMONegativeAcknowledge, classifyWMOReply([]byte(wmoNegativeAck)))
	assert.Equal(t, WMOUnexpectedReply, classifyWMOReply([]byte("garbage!!!")))
}

func TestWMOReplyLenIsTenBytes(t *testing.T) {
	assert.Len(t, []byte(wmoPositiveAck), WMOReplyLen)
	assert.Len(t, []byte(wmoNegativeAck), WMOReplyLen)
}
