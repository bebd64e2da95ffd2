package status

import (
	"bytes"
	"encoding/binary"
)

// Header is the fixed-size "word offset" block at the start of every
// status table: record count, reserved padding, version byte, page
// size, followed by the dense record array.
type Header struct {
	NoOfRecords int32
	Reserved    [20]byte
	Version     byte
	PageSize    int32
}

// HeaderSize is the on-disk size of Header, used to compute the offset
// at which the record array begins.
var HeaderSize = binary.Size(Header{})

func encodeHeader(h Header) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		panic("status: header does not have a fixed binary size: " + err.Error())
	}
	return buf.Bytes()
}

func decodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, ErrWrongTable
	}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, err
	}
	return h, nil
}

// firstWord reads the first 4 bytes of the header as the generation
// marker word, matching the STALE-swap protocol.
func firstWord(b []byte) int32 {
	if len(b) < 4 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// markStale writes the STALE marker into the first header word of b.
func markStale(b []byte) {
	s := Stale
	binary.LittleEndian.PutUint32(b, uint32(s))
}
