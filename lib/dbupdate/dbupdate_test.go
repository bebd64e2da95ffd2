package dbupdate

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRoundTripsWithFakeManager(t *testing.T) {
	workDir := t.TempDir()
	fifoDir := filepath.Join(workDir, "fifo_dir")

	done := make(chan struct{})
	go func() {
		defer close(done)
		updatePath := filepath.Join(fifoDir, "db_update")
		for {
			if _, err := os.Stat(updatePath); err == nil {
				break
			}
			time.Sleep(time.Millisecond)
		}
		f, err := os.OpenFile(updatePath, os.O_RDONLY, os.ModeNamedPipe)
		if err != nil {
			return
		}
		buf := make([]byte, 5)
		n, _ := f.Read(buf)
		f.Close()
		if n != 5 || buf[0] != OpcodeDirConfigUpdate {
			return
		}
		pid := binary.LittleEndian.Uint32(buf[1:])

		replyPath := filepath.Join(fifoDir, "db_update_reply."+strconv.Itoa(int(pid)))
		rf, err := os.OpenFile(replyPath, os.O_WRONLY, os.ModeNamedPipe)
		if err != nil {
			return
		}
		defer rf.Close()
		rf.Write([]byte("2 one warning\n"))
	}()

	reply, err := Send(context.Background(), workDir, OpcodeDirConfigUpdate, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ReplyWarnings, reply.Code)
	assert.Equal(t, "one warning", reply.Summary)
	<-done
}

func TestSendTimesOutWithoutAManager(t *testing.T) {
	workDir := t.TempDir()
	reply, err := Send(context.Background(), workDir, OpcodeHostConfigUpdate, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ReplyInternal, reply.Code)
}
