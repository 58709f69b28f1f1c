package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// BroadcastNodeID is the reserved recipient meaning "all nodes on the channel".
const BroadcastNodeID = ^uint32(0)

// FormatNodeID renders a node id in the canonical "!1234abcd" form.
func FormatNodeID(id uint32) string {
	return fmt.Sprintf("!%08x", id)
}

// ParseNodeID accepts canonical "!1234abcd" ids as well as bare hex/decimal.
func ParseNodeID(raw string) (uint32, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.HasPrefix(raw, "!") {
		v, err := strconv.ParseUint(raw[1:], 16, 32)
		if err != nil {
			return 0, false
		}

		return uint32(v), true
	}
	if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
		return uint32(v), true
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, false
	}

	return uint32(v), true
}
