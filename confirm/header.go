package confirm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// Header is the fixed-size block at the start of every queue file:
// [no_of_queued:int | reserved | version:byte | creation_time], the same
// word-offset discipline as status.Header and lsdata.Header.
type Header struct {
	NoOfQueued   int32
	Reserved     [16]byte
	Version      byte
	CreationTime int64
}

// HeaderSize is the on-disk size of Header.
var HeaderSize = binary.Size(Header{})

// EntrySize is the on-disk size of Entry.
var EntrySize = binary.Size(Entry{})

// ErrCorrupt is returned when a queue file is shorter than its declared
// header or entry region.
var ErrCorrupt = errors.New("confirm: corrupt queue file")

func init() {
	if HeaderSize < 0 {
		panic("confirm: Header does not have a fixed binary size")
	}
	if EntrySize < 0 {
		panic("confirm: Entry does not have a fixed binary size")
	}
}

func encodeHeader(h Header) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		panic("confirm: header encode: " + err.Error())
	}
	return buf.Bytes()
}

func decodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, ErrCorrupt
	}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, err
	}
	return h, nil
}

func encodeEntry(e Entry) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(EntrySize)
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		panic("confirm: entry encode: " + err.Error())
	}
	return buf.Bytes()
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	if len(b) < EntrySize {
		return e, ErrCorrupt
	}
	if err := binary.Read(bytes.NewReader(b[:EntrySize]), binary.LittleEndian, &e); err != nil {
		return e, err
	}
	return e, nil
}

// stepCountFor returns the slot capacity the grow-by-step discipline
// demands for n entries: ((n/Step)+1)*Step, keeping a free trailing
// slot at step boundaries, the same policy as lsdata.
func stepCountFor(n int) int {
	if n < 0 {
		n = 0
	}
	return ((n / Step) + 1) * Step
}

// requiredSize is the file size needed to hold n queued entries: header +
// stepCountFor(n)*sizeof(Entry).
func requiredSize(n int) int64 {
	return int64(HeaderSize) + int64(stepCountFor(n))*int64(EntrySize)
}

func nowUnix() int64 { return time.Now().Unix() }
