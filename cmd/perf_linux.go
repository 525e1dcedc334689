//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs fn under a hardware instruction counter. ok is false
// when the counter could not be opened and fn ran uncounted.
func countInstructions(fn func() error) (instructions uint64, ok bool, err error) {
	var ran bool
	pv, perr := perf.CPUInstructions(func() error {
		ran = true
		err = fn()
		return err
	})
	switch {
	case !ran:
		return 0, false, fn()
	case perr != nil || pv == nil:
		return 0, false, err
	}
	return pv.Value, true, err
}
