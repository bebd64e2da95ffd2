package lsdata

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Header is the fixed-size block at the start of every ls-data file:
// [no_of_listed_files:int | reserved | version:byte | creation_time]
type Header struct {
	NoOfListedFiles int32
	Reserved        [16]byte
	Version         byte
	CreationTime    int64
}

// HeaderSize is the on-disk size of Header.
var HeaderSize = binary.Size(Header{})

// EntrySize is the on-disk size of Entry.
var EntrySize = binary.Size(Entry{})

func init() {
	if HeaderSize < 0 {
		panic("lsdata: Header does not have a fixed binary size")
	}
	if EntrySize < 0 {
		panic("lsdata: Entry does not have a fixed binary size")
	}
}

func encodeHeader(h Header) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		panic("lsdata: header encode: " + err.Error())
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
		panic("lsdata: entry encode: " + err.Error())
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
// demands for n entries: ((n/Step)+1)*Step, so the array always keeps a
// free trailing slot at a step boundary. Filling a list to exactly Step
// entries therefore grows it to 2*Step, the same length formula
// DetectLegacy recognises the legacy shape by.
func stepCountFor(n int) int {
	if n < 0 {
		n = 0
	}
	return ((n / Step) + 1) * Step
}

// requiredSize is the file size the invariant demands for
// noOfListedFiles entries: header + stepCountFor(n)*sizeof(Entry).
func requiredSize(noOfListedFiles int) int64 {
	return int64(HeaderSize) + int64(stepCountFor(noOfListedFiles))*int64(EntrySize)
}

func nowUnix() int64 { return time.Now().Unix() }
