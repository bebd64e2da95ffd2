package trl

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	limit  int64
	active int32
	trl    int64
}

type fakeProvider struct {
	hosts map[string]*fakeHost
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{hosts: map[string]*fakeHost{}}
}

func (p *fakeProvider) add(alias string, limit int64, active int32) {
	p.hosts[alias] = &fakeHost{limit: limit, active: active}
}

func (p *fakeProvider) Hosts() []string {
	var out []string
	for a := range p.hosts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (p *fakeProvider) TransferRateLimit(alias string) int64 {
	return p.hosts[alias].limit
}

func (p *fakeProvider) NetActiveTransfers(alias string) int32 {
	return p.hosts[alias].active
}

func (p *fakeProvider) SetTRLPerProcess(alias string, kibPerSec int64) error {
	p.hosts[alias].trl = kibPerSec
	return nil
}

func writeTRLFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "afd.trl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseFileBasic(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[grp1]\nmembers = h1,h2\nlimit = 10485760\n")

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Groups, 1)
	g := cfg.Groups[0]
	assert.Equal(t, "grp1", g.Name)
	assert.ElementsMatch(t, []string{"h1", "h2"}, g.Members)
	assert.Equal(t, int64(10485760/1024), g.LimitKB)
}

func TestDuplicateMembershipFirstWins(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[a]\nmembers = h1\nlimit = 1024\n\n[b]\nmembers = h1,h2\nlimit = 2048\n")

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.GroupFor("h1").Name)
	assert.Equal(t, "b", cfg.GroupFor("h2").Name)
}

func TestWildcardMembership(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[prod]\nmembers = prod-*\nlimit = 1024\n")

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg.GroupFor("prod-01"))
	assert.Nil(t, cfg.GroupFor("dev-01"))
}

// TestGroupSharesWithinBudget exercises two hosts, both with 2 active
// transfers, no host-local limit, and a group limit of 10240 KiB/s.
func TestGroupSharesWithinBudget(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[grp]\nmembers = h1,h2\nlimit = 10485760\n") // 10240 KiB/s

	p := newFakeProvider()
	p.add("h1", 0, 2)
	p.add("h2", 0, 2)

	e := NewEngine(path, p)
	require.NoError(t, e.InitTRLData())

	assert.Equal(t, int64(2560), p.hosts["h1"].trl)
	assert.Equal(t, int64(2560), p.hosts["h2"].trl)

	var total int64
	for _, alias := range p.Hosts() {
		total += p.hosts[alias].trl * int64(p.hosts[alias].active)
	}
	assert.LessOrEqual(t, total, int64(10240))
}

func TestSoloHostTakesMinOfOwnAndGroupLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[grp]\nmembers = h1\nlimit = 1024000\n") // 1000 KiB/s

	p := newFakeProvider()
	p.add("h1", 512000, 1) // host's own limit is 500 KiB/s

	e := NewEngine(path, p)
	require.NoError(t, e.InitTRLData())

	assert.Equal(t, int64(500), p.hosts["h1"].trl)
}

func TestRemovingFileResetsToLocalLimits(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[grp]\nmembers = h1,h2\nlimit = 10485760\n")

	p := newFakeProvider()
	p.add("h1", 0, 2)
	p.add("h2", 0, 2)

	e := NewEngine(path, p)
	require.NoError(t, e.InitTRLData())
	require.NotZero(t, p.hosts["h1"].trl)

	require.NoError(t, os.Remove(path))
	require.NoError(t, e.CheckFile())

	assert.Zero(t, p.hosts["h1"].trl)
	assert.Zero(t, p.hosts["h2"].trl)
}

func TestCheckFileIdempotentWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeTRLFile(t, dir, "[grp]\nmembers = h1\nlimit = 1024\n")

	p := newFakeProvider()
	p.add("h1", 0, 1)

	e := NewEngine(path, p)
	require.NoError(t, e.InitTRLData())
	first := p.hosts["h1"].trl

	p.hosts["h1"].trl = -999 // sentinel: CheckFile must not touch it again
	require.NoError(t, e.CheckFile())
	assert.Equal(t, int64(-999), p.hosts["h1"].trl)
	assert.NotZero(t, first)
}
