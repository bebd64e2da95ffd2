// Package trl implements the Transfer-Rate-Limit engine: parsing the TRL group file, recomputing per-process byte-rate shares on
// membership or active-transfer changes, and enforcing the computed share
// with a live rate limiter.
//
// The group file is an INI-family grammar ([group] sections, key = value
// lines), so this package parses it with github.com/Unknwon/goconfig
// rather than hand-rolling a scanner.
package trl

import (
	"path"
	"strconv"
	"strings"

	"github.com/Unknwon/goconfig"
	"github.com/rclone/filerelay/fs"
)

// Group is one [group-name] section of the TRL file: a set of host
// aliases (with shell-style wildcard members) sharing a byte-rate limit.
type Group struct {
	Name    string
	Members []string // raw patterns, e.g. "host1", "prod-*"
	LimitKB int64    // limit, stored in KiB/s
}

// Matches reports whether hostAlias matches one of the group's member
// patterns, using shell-style "*?" wildcards.
func (g *Group) Matches(hostAlias string) bool {
	for _, pat := range g.Members {
		if ok, _ := path.Match(pat, hostAlias); ok {
			return true
		}
	}
	return false
}

// Config is a parsed TRL file: an ordered set of groups plus a lookup
// from host alias to the (first) group it belongs to.
type Config struct {
	Groups      []*Group
	hostToGroup map[string]*Group
}

// GroupFor returns the group hostAlias belongs to, or nil if it is not a
// member of any group.
func (c *Config) GroupFor(hostAlias string) *Group {
	if c == nil {
		return nil
	}
	if g, ok := c.hostToGroup[hostAlias]; ok {
		return g
	}
	for _, g := range c.Groups {
		if g.Matches(hostAlias) {
			return g
		}
	}
	return nil
}

// ParseFile parses the TRL group file at path.
//
// A host may appear in only one group; if it recurs in a later section,
// that later mention is logged as a warning and the first assignment
// wins.
func ParseFile(path string) (*Config, error) {
	cfg, err := goconfig.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	c := &Config{hostToGroup: map[string]*Group{}}
	for _, name := range cfg.GetSectionList() {
		membersRaw := cfg.MustValue(name, "members", "")
		limitRaw := cfg.MustValue(name, "limit", "0")

		limitBytes, err := strconv.ParseInt(strings.TrimSpace(limitRaw), 10, 64)
		if err != nil {
			fs.Errorf(path, "trl: group %q has invalid limit %q, treating as 0: %v", name, limitRaw, err)
			limitBytes = 0
		}

		g := &Group{Name: name, LimitKB: limitBytes / 1024}
		for _, m := range strings.Split(membersRaw, ",") {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			if existing, ok := c.hostToGroup[m]; ok {
				fs.Logf(path, "trl: host %q already a member of group %q, ignoring later membership in %q", m, existing.Name, name)
				continue
			}
			g.Members = append(g.Members, m)
			c.hostToGroup[m] = g
		}
		c.Groups = append(c.Groups, g)
	}
	return c, nil
}
