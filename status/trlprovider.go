package status

import "fmt"

// TRLHostProvider adapts a Table to trl.HostProvider by linear scan over
// the table's host_alias column. It is deliberately simple: the TRL
// engine recomputes shares only on membership/activity change, not on
// every transfer, so an O(n) alias lookup per recompute is not a hot
// path.
type TRLHostProvider struct {
	Table *Table
}

// Hosts implements trl.HostProvider.
func (p *TRLHostProvider) Hosts() []string {
	out := make([]string, 0, p.Table.NoOfRecords())
	for i := 0; i < p.Table.NoOfRecords(); i++ {
		r, err := p.Table.ReadFSA(i)
		if err != nil {
			continue
		}
		alias := cstring(r.HostAlias[:])
		if alias != "" {
			out = append(out, alias)
		}
	}
	return out
}

// TransferRateLimit implements trl.HostProvider.
func (p *TRLHostProvider) TransferRateLimit(alias string) int64 {
	r, ok := p.findLocked(alias)
	if !ok {
		return 0
	}
	return r.TransferRateLimit
}

// NetActiveTransfers implements trl.HostProvider.
func (p *TRLHostProvider) NetActiveTransfers(alias string) int32 {
	r, ok := p.findLocked(alias)
	if !ok {
		return 0
	}
	return r.NetActiveTransfers()
}

// SetTRLPerProcess implements trl.HostProvider.
func (p *TRLHostProvider) SetTRLPerProcess(alias string, kibPerSec int64) error {
	pos, ok := p.positionOf(alias)
	if !ok {
		return fmt.Errorf("status: trl provider: unknown host %q", alias)
	}
	r, err := p.Table.ReadFSA(pos)
	if err != nil {
		return err
	}
	r.TRLPerProcess = kibPerSec
	return p.Table.WriteFSA(pos, r)
}

func (p *TRLHostProvider) positionOf(alias string) (int, bool) {
	for i := 0; i < p.Table.NoOfRecords(); i++ {
		r, err := p.Table.ReadFSA(i)
		if err != nil {
			continue
		}
		if cstring(r.HostAlias[:]) == alias {
			return i, true
		}
	}
	return 0, false
}

func (p *TRLHostProvider) findLocked(alias string) (FSARecord, bool) {
	pos, ok := p.positionOf(alias)
	if !ok {
		return FSARecord{}, false
	}
	r, err := p.Table.ReadFSA(pos)
	if err != nil {
		return FSARecord{}, false
	}
	return r, true
}

// cstring trims the trailing NUL padding from a fixed-size byte array
// field, matching the worker package's helper of the same name.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
