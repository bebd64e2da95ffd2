package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsValuedAndPresence(t *testing.T) {
	opts, err := ParseOptions([]string{
		"-a", "30", "-A", "-c", "-C", "utf-8", "-e", "60", "-m", "0755", "-S", "-t",
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.AgeLimit)
	assert.True(t, opts.DisableArchiving)
	assert.True(t, opts.HardwareCRC)
	assert.Equal(t, "utf-8", opts.Charset)
	assert.Equal(t, 60*time.Second, opts.DisconnectIdleSeconds)
	assert.Equal(t, uint32(0755), opts.CreateTargetDirMode)
	assert.True(t, opts.CreateTargetDir)
	assert.True(t, opts.Simulation)
	assert.True(t, opts.ToggleHost)
}

func TestParseOptionsMissingValue(t *testing.T) {
	_, err := ParseOptions([]string{"-a"})
	assert.Error(t, err)
}

func TestParseOptionsModeDigitCount(t *testing.T) {
	_, err := ParseOptions([]string{"-m", "75"})
	assert.Error(t, err)
	_, err = ParseOptions([]string{"-m", "07555"})
	assert.Error(t, err)

	opts, err := ParseOptions([]string{"-m", "755"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0755), opts.CreateTargetDirMode)
}

func TestParseOptionsUnknownFlag(t *testing.T) {
	_, err := ParseOptions([]string{"-Z"})
	assert.Error(t, err)
}

func TestParseOptionsSMTPFields(t *testing.T) {
	opts, err := ParseOptions([]string{
		"-f", "noreply@example.com", "-R", "reply@example.com", "-s", "mail.example.com:25", "-g", "group.example.com", "-D", "de@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", opts.SMTPFrom)
	assert.Equal(t, "reply@example.com", opts.SMTPReplyTo)
	assert.Equal(t, "mail.example.com:25", opts.SMTPServer)
	assert.Equal(t, "group.example.com", opts.GroupMailDomain)
	assert.Equal(t, "de@example.com", opts.DEMailSender)
}
