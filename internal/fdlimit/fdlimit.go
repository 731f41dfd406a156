// Package fdlimit raises the process's open-file-descriptor ceiling so a
// worker can hold one goroutine and one net.Conn per in-flight request
// without running into the platform default (often 1024).
package fdlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Raise raises RLIMIT_NOFILE's soft limit to want, capped at the kernel's
// hard limit; a soft limit already at or above want is left unchanged. It
// returns the soft limit actually in effect after the call.
func Raise(want uint64) (uint64, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, fmt.Errorf("fdlimit: getrlimit: %w", err)
	}

	if rlimit.Cur >= want {
		return rlimit.Cur, nil
	}

	target := want
	if rlimit.Max > 0 && target > rlimit.Max {
		target = rlimit.Max
	}

	rlimit.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, fmt.Errorf("fdlimit: setrlimit to %d: %w", target, err)
	}

	return target, nil
}

// Current returns the process's current soft RLIMIT_NOFILE.
func Current() (uint64, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, fmt.Errorf("fdlimit: getrlimit: %w", err)
	}
	return rlimit.Cur, nil
}
