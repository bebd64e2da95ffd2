package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rclone/filerelay/status"
)

func makeFSAWithHostnames(first, second string) status.FSARecord {
	var r status.FSARecord
	copy(r.RealHostname[0][:], first)
	copy(r.RealHostname[1][:], second)
	return r
}

func TestResolveRealHostnameDefaultSlot(t *testing.T) {
	fsa := makeFSAWithHostnames("primary.example.com", "secondary.example.com")
	host := ResolveRealHostname(&fsa, false)
	assert.Equal(t, "primary.example.com", host)
}

func TestResolveRealHostnameToggles(t *testing.T) {
	fsa := makeFSAWithHostnames("primary.example.com", "secondary.example.com")
	host := ResolveRealHostname(&fsa, true)
	assert.Equal(t, "secondary.example.com", host)
	assert.EqualValues(t, 1, fsa.HostToggle)
}

func TestToggleHostWraps(t *testing.T) {
	var fsa status.FSARecord
	fsa.HostToggle = byte(status.MaxRealHostnames - 1)
	ToggleHost(&fsa)
	assert.EqualValues(t, 0, fsa.HostToggle)
}
