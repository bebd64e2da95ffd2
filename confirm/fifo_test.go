package confirm

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFIFOIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demcd.fifo")
	require.NoError(t, CreateFIFO(path, 0600))
	require.NoError(t, CreateFIFO(path, 0600))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, fi.Mode()&os.ModeNamedPipe != 0)
}

func TestPollFIFOIngestsWrittenRecord(t *testing.T) {
	fifoPath := filepath.Join(t.TempDir(), "demcd.fifo")
	require.NoError(t, CreateFIFO(fifoPath, 0600))

	q := newTestQueue(t)
	c := NewCorrelator(q, fifoPath, filepath.Join(t.TempDir(), "missing_mail"), time.Minute)
	defer c.Close()

	var e Entry
	e.SetFileName("piped.dat")
	e.LogTime = time.Now().Unix()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(fifoPath, os.O_WRONLY, os.ModeNamedPipe)
		if err != nil {
			return
		}
		f.Write(encodeEntry(e))
		f.Close()
	}()

	var err error
	for i := 0; i < 20; i++ {
		_, _, err = c.Tick(time.Now())
		require.NoError(t, err)
		if q.Len() == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, 1, q.Len())
	got, err := q.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "piped.dat", got.FileNameString())
}
