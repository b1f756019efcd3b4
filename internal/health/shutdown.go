package health

import "sync/atomic"

// draining flips once shutdown begins so load balancers stop routing new
// traffic before in-flight requests finish.
var draining atomic.Bool

// SetReady toggles the readiness gate. Pass false at the start of a graceful
// shutdown.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// IsReady reports whether the process accepts new traffic.
func IsReady() bool {
	return !draining.Load()
}
