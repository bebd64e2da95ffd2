package worker

import (
	"bytes"

	"github.com/rclone/filerelay/status"
)

// ResolveRealHostname picks the active slot of fsa.RealHostname using
// host_toggle, and flips it first when the -t option (or an automatic
// toggle condition) requests it.
func ResolveRealHostname(fsa *status.FSARecord, toggle bool) string {
	if toggle {
		ToggleHost(fsa)
	}
	slot := int(fsa.HostToggle)
	if slot < 0 || slot >= status.MaxRealHostnames {
		slot = 0
	}
	return cstring(fsa.RealHostname[slot][:])
}

// ToggleHost flips HostToggle between the two real_hostname slots,
// wrapping at MaxRealHostnames.
func ToggleHost(fsa *status.FSARecord) {
	fsa.HostToggle = (fsa.HostToggle + 1) % status.MaxRealHostnames
}

// cstring trims b at its first NUL byte and returns the rest as a
// string, the same convention status/trlprovider.go uses for the fixed-size
// byte-array fields.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
