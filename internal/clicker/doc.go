// Package clicker is the precision click scheduler.
//
// A Scheduler runs one background goroutine per session that fires an
// Actuator on a fixed-rate grid (next += 1s/rate, so actuation latency
// never accumulates) or after a uniform random jitter. Handle wraps it for
// a single-threaded caller that polls status events on a UI-style tick.
//
// Stop is cooperative and never joins the goroutine: every sleep selects on
// the run's context, so a stopped loop exits within one timer wakeup.
package clicker
