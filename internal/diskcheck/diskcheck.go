// Package diskcheck runs the free-space preflight a long-lived store
// performs before opening its database, continuing the teacher's
// gopsutil dependency (declared in go.mod, never imported by the
// teacher itself — its own internal/keyValStore used a raw
// syscall.Statfs instead) into an actual call site.
package diskcheck

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
)

const bytesPerGB = 1 << 30

// Check returns an error if the filesystem backing path has fewer than
// minimumFreeGB gigabytes free.
func Check(path string, minimumFreeGB uint) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("diskcheck: stat %s: %w", path, err)
	}

	freeGB := usage.Free / bytesPerGB
	if freeGB < uint64(minimumFreeGB) {
		return fmt.Errorf(
			"diskcheck: %s has %dGB free, want at least %dGB",
			path, freeGB, minimumFreeGB,
		)
	}
	return nil
}
