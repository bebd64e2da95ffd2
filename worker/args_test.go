package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsValid(t *testing.T) {
	a, err := ParseArgs([]string{"/work/dir", "17", "3", "0", "abc123", "-S", "-t"})
	require.NoError(t, err)
	assert.Equal(t, "/work/dir", a.WorkDir)
	assert.Equal(t, uint32(17), a.JobNo)
	assert.Equal(t, uint32(3), a.FSAID)
	assert.Equal(t, 0, a.FSAPos)
	assert.Equal(t, "abc123", a.MsgOrDirID)
	assert.Equal(t, []string{"-S", "-t"}, a.Options)
}

func TestParseArgsHexJobNo(t *testing.T) {
	a, err := ParseArgs([]string{"/work", "0x1f", "2", "1", "dead_beef"})
	require.NoError(t, err)
	assert.Equal(t, uint32(31), a.JobNo)
}

func TestParseArgsTooFewFields(t *testing.T) {
	_, err := ParseArgs([]string{"/work", "1", "2"})
	assert.Error(t, err)
	var syn *SyntaxError
	assert.ErrorAs(t, err, &syn)
}

func TestParseArgsBadCharacterClass(t *testing.T) {
	_, err := ParseArgs([]string{"/work", "1", "2", "0", "has space"})
	assert.Error(t, err)
}

func TestParseArgsNegativePos(t *testing.T) {
	_, err := ParseArgs([]string{"/work", "1", "2", "-1", "id"})
	assert.Error(t, err)
}
