//go:build !unix

package benchmark

import "time"

// cpuTimes is not available on this platform; only real time is reported.
func cpuTimes() (user, system time.Duration) {
	return 0, 0
}
