package trl

import (
	"os"
	"sync"
	"time"

	"github.com/rclone/filerelay/fs"
)

// HostProvider is the minimal view the TRL engine needs of the shared
// status store (status.Table), kept as a narrow interface so this
// package never imports status directly and can be tested in isolation.
type HostProvider interface {
	// Hosts returns every known host alias.
	Hosts() []string
	// TransferRateLimit returns the host's own configured limit in
	// bytes/sec (fsa[].transfer_rate_limit), 0 if none configured.
	TransferRateLimit(alias string) int64
	// NetActiveTransfers returns the host's current net active transfer
	// count.
	NetActiveTransfers(alias string) int32
	// SetTRLPerProcess publishes the computed KiB/s share back to the
	// host's fsa[].trl_per_process field.
	SetTRLPerProcess(alias string, kibPerSec int64) error
}

// Engine owns the parsed TRL configuration and recomputes per-process
// shares whenever the file or host membership/activity changes.
type Engine struct {
	mu       sync.Mutex
	path     string
	provider HostProvider
	cfg      *Config
	modTime  time.Time
}

// NewEngine creates an Engine reading group config from path and
// resolving host state through provider.
func NewEngine(path string, provider HostProvider) *Engine {
	return &Engine{path: path, provider: provider}
}

// InitTRLData performs the initial load, the entry point a daemon calls
// once at startup before its first CheckFile call.
func (e *Engine) InitTRLData() error {
	return e.CheckFile()
}

// CheckFile stats the TRL file; if its mtime changed or it has vanished
// since the last check, it reloads (or clears) the configuration and
// recomputes every host's share. CheckFile is idempotent when the
// file's mtime and contents are unchanged.
func (e *Engine) CheckFile() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fi, err := os.Stat(e.path)
	if os.IsNotExist(err) {
		if e.cfg == nil {
			return nil // already cleared, nothing to do
		}
		fs.Logf(e.path, "trl: group file removed, resetting all hosts to local limits")
		e.cfg = nil
		e.modTime = time.Time{}
		return e.recomputeAllLocked()
	}
	if err != nil {
		return err
	}

	if e.cfg != nil && fi.ModTime().Equal(e.modTime) {
		return nil // unchanged, nothing to do
	}

	cfg, err := ParseFile(e.path)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.modTime = fi.ModTime()
	fs.Infof(e.path, "trl: reloaded %d group(s)", len(cfg.Groups))
	return e.recomputeAllLocked()
}

func (e *Engine) recomputeAllLocked() error {
	for _, alias := range e.provider.Hosts() {
		if err := e.calcLocked(alias); err != nil {
			return err
		}
	}
	return nil
}

// CalcTRLPerProcess recomputes and publishes the per-process byte-rate
// share for alias (`calc_trl_per_process(pos)`).
func (e *Engine) CalcTRLPerProcess(alias string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calcLocked(alias)
}

func (e *Engine) calcLocked(alias string) error {
	group := e.cfg.GroupFor(alias)
	ownLimit := e.provider.TransferRateLimit(alias)

	if group == nil {
		// Not in any group: own limit divided across active transfers.
		share := e.soloShareNoGroup(alias, ownLimit)
		return e.provider.SetTRLPerProcess(alias, share)
	}

	members := e.groupMembersLocked(group)
	if len(members) <= 1 {
		// Sole member of a group: min(own limit, group limit); a host
		// with no own limit takes the group limit.
		share := group.LimitKB
		if ownLimit > 0 {
			share = minInt64(ownLimit/1024, group.LimitKB)
		}
		return e.provider.SetTRLPerProcess(alias, share)
	}

	shares := e.distribute(group, members)
	for member, share := range shares {
		// Always publish every recomputed member, closing the Open
		// Question about the solo-branch value not
		// always being written back.
		if err := e.provider.SetTRLPerProcess(member, share); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) groupMembersLocked(g *Group) []string {
	var out []string
	for _, alias := range e.provider.Hosts() {
		if e.cfg.GroupFor(alias) == g {
			out = append(out, alias)
		}
	}
	return out
}

// soloShareNoGroup computes the share for a host that belongs to no
// group at all: its own limit divided by its active transfers.
func (e *Engine) soloShareNoGroup(alias string, ownLimit int64) int64 {
	active := e.provider.NetActiveTransfers(alias)
	if active <= 0 {
		active = 1
	}
	return (ownLimit / 1024) / int64(active)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// distribute implements per-process sharing algorithm for
// a multi-member group: initial per-host guess, then iterative freeze of
// any host whose current share already exceeds the group-wide fair
// share, until only the unfrozen hosts take a recomputed equal share.
func (e *Engine) distribute(g *Group, members []string) map[string]int64 {
	type hostState struct {
		alias        string
		active       int64
		ownLimitKB   int64 // host's own configured limit, KiB/s (0 = none)
		hasOwnLimit  bool
		ownPerActive int64 // own limit divided across its active transfers
		frozen       bool
		share        int64
	}

	states := make([]*hostState, 0, len(members))
	var totalActive int64
	for _, alias := range members {
		active := int64(e.provider.NetActiveTransfers(alias))
		if active <= 0 {
			active = 1
		}
		ownLimit := e.provider.TransferRateLimit(alias)
		hs := &hostState{
			alias:       alias,
			active:      active,
			ownLimitKB:  ownLimit / 1024,
			hasOwnLimit: ownLimit > 0,
		}
		hs.ownPerActive = hs.ownLimitKB / active
		if hs.ownPerActive <= 0 && hs.hasOwnLimit {
			hs.ownPerActive = 1
		}
		states = append(states, hs)
		totalActive += active
	}

	limit := g.LimitKB
	activePool := totalActive

	// Hosts carrying their own configured limit (fsa[].transfer_rate_limit)
	// that falls short of an equal group split are frozen at that own
	// value and excluded from the remaining pool; hosts with no
	// override of their own participate in the pool and take the fair
	// share once no more freezing occurs.
	for activePool > 1 {
		tmp := limit / activePool
		frozeAny := false
		for _, hs := range states {
			if hs.frozen || !hs.hasOwnLimit {
				continue
			}
			if hs.ownPerActive < tmp {
				hs.frozen = true
				hs.share = hs.ownPerActive
				activePool -= hs.active
				limit -= hs.ownLimitKB
				frozeAny = true
			}
		}
		if !frozeAny {
			for _, hs := range states {
				if !hs.frozen {
					hs.share = tmp
				}
			}
			break
		}
	}
	if activePool <= 1 {
		for _, hs := range states {
			if !hs.frozen {
				hs.share = limit
			}
		}
	}

	out := make(map[string]int64, len(states))
	for _, hs := range states {
		out[hs.alias] = hs.share
	}
	return out
}
