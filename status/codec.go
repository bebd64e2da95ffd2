package status

import (
	"bytes"
	"encoding/binary"
)

// FSARecordSize and FRARecordSize are the fixed on-disk sizes of each
// record kind, computed once at init from the struct layout.
var (
	FSARecordSize = binary.Size(FSARecord{})
	FRARecordSize = binary.Size(FRARecord{})
	MDBRecordSize = binary.Size(MDBRecord{})
)

func init() {
	if FSARecordSize < 0 || FRARecordSize < 0 || MDBRecordSize < 0 {
		panic("status: a record type does not have a fixed binary size")
	}
}

func encodeRecord(v interface{}, size int) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(size)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic("status: record encode: " + err.Error())
	}
	return buf.Bytes()
}

func decodeFSA(b []byte) (FSARecord, error) {
	var r FSARecord
	err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r)
	return r, err
}

func decodeFRA(b []byte) (FRARecord, error) {
	var r FRARecord
	err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r)
	return r, err
}

func decodeMDB(b []byte) (MDBRecord, error) {
	var r MDBRecord
	err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r)
	return r, err
}
