// Package cycle drives the job state machine on a fixed interval.
//
// The Driver recovers orphaned work at start, then fires a tick every poll
// interval. A tick that arrives while a pass is still running is dropped, so
// at most one discovery-and-process pass executes at any time and missed
// ticks never pile up.
package cycle
