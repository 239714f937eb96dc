// Package clock wraps the POSIX boot clock used as the host side of the
// device-tick-to-host-time conversion.
package clock

import "golang.org/x/sys/unix"

// BootNS returns the current CLOCK_BOOTTIME value in nanoseconds. It is
// the host clock that GPU device ticks are correlated against by the sync
// protocol.
func BootNS() int64 {
	var ts unix.Timespec
	// CLOCK_BOOTTIME is mandatory on any Linux new enough to run a Vulkan
	// driver; on the practically-impossible failure ts stays zero-valued
	// and this returns 0 rather than propagating an error every caller
	// would just have to ignore.
	unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts)
	return ts.Nano()
}
