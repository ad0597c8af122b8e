//go:build linux

package metadata

import (
	"os"
	"strconv"
	"strings"
)

// debuggerAttached reports a nonzero TracerPid in /proc/self/status.
func debuggerAttached() bool {
	raw, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(raw), "\n") {
		rest, ok := strings.CutPrefix(line, "TracerPid:")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(rest))
		return err == nil && pid != 0
	}
	return false
}
