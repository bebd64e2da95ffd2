package status

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PositionMapping is the per-position attachment: the process maps the
// header read-only and a single page-aligned window covering exactly
// the record at pos read-write, rather than the whole table, so a
// worker survives table growth it isn't looking at.
type PositionMapping struct {
	file       *os.File
	kind       Kind
	pos        int
	header     []byte // header, read-only
	pageOffset int64
	window     []byte // mmap'd page-aligned window containing the record
	recOffset  int    // offset of the record within window
	recSize    int
	safe       bool // fsa_pos_save: true once attached, cleared on detach/stale
}

// AttachPosition opens path and attaches to the record at pos, validating
// the header version and record count first.
func AttachPosition(path string, kind Kind, pos int) (*PositionMapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("status: attach open %s: %w", path, err)
	}

	header, err := unix.Mmap(int(f.Fd()), 0, HeaderSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("status: attach map header: %w", err)
	}

	h, err := decodeHeader(header)
	if err != nil {
		unix.Munmap(header)
		f.Close()
		return nil, err
	}
	if h.Version != CurrentVersion {
		unix.Munmap(header)
		f.Close()
		return nil, ErrWrongVersion
	}
	if h.NoOfRecords <= 0 {
		unix.Munmap(header)
		f.Close()
		return nil, ErrWrongTable
	}
	if pos < 0 || pos >= int(h.NoOfRecords) {
		unix.Munmap(header)
		f.Close()
		return nil, ErrWrongTable
	}

	recSize := kind.recordSize()
	start := int64(HeaderSize) + int64(pos)*int64(recSize)
	pgSize := int64(pageSize())
	pageOffset := (start / pgSize) * pgSize
	windowLen := int(start-pageOffset) + recSize

	window, err := unix.Mmap(int(f.Fd()), pageOffset, windowLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(header)
		f.Close()
		return nil, fmt.Errorf("status: attach map record: %w", err)
	}

	return &PositionMapping{
		file:       f,
		kind:       kind,
		pos:        pos,
		header:     header,
		pageOffset: pageOffset,
		window:     window,
		recOffset:  int(start - pageOffset),
		recSize:    recSize,
		safe:       true,
	}, nil
}

// Safe reports whether it is currently valid to follow this mapping.
func (p *PositionMapping) Safe() bool {
	return p.safe
}

// Check inspects the header's generation word; ErrStale means the caller
// must Detach and AttachPosition again.
func (p *PositionMapping) Check() error {
	if firstWord(p.header) == Stale {
		p.safe = false
		return ErrStale
	}
	return nil
}

// recordBytes returns the slice of window holding this position's record.
func (p *PositionMapping) recordBytes() []byte {
	return p.window[p.recOffset : p.recOffset+p.recSize]
}

// ReadFSA decodes the attached record as an FSARecord.
func (p *PositionMapping) ReadFSA() (FSARecord, error) {
	if !p.safe {
		return FSARecord{}, ErrInvalidPosition
	}
	return decodeFSA(p.recordBytes())
}

// WriteFSA encodes r into the attached record.
func (p *PositionMapping) WriteFSA(r FSARecord) error {
	if !p.safe {
		return ErrInvalidPosition
	}
	copy(p.recordBytes(), encodeRecord(r, p.recSize))
	return nil
}

// ReadFRA decodes the attached record as an FRARecord.
func (p *PositionMapping) ReadFRA() (FRARecord, error) {
	if !p.safe {
		return FRARecord{}, ErrInvalidPosition
	}
	return decodeFRA(p.recordBytes())
}

// WriteFRA encodes r into the attached record.
func (p *PositionMapping) WriteFRA(r FRARecord) error {
	if !p.safe {
		return ErrInvalidPosition
	}
	copy(p.recordBytes(), encodeRecord(r, p.recSize))
	return nil
}

// Detach releases both mappings and clears the safe flag. Safe to call
// more than once.
func (p *PositionMapping) Detach() error {
	p.safe = false
	var err error
	if p.window != nil {
		err = unix.Munmap(p.window)
		p.window = nil
	}
	if p.header != nil {
		if uerr := unix.Munmap(p.header); uerr != nil && err == nil {
			err = uerr
		}
		p.header = nil
	}
	if p.file != nil {
		if cerr := p.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.file = nil
	}
	return err
}
