// Package schedule runs delayed callbacks on a single worker goroutine that
// only exists while there is outstanding work.
//
// A Scheduler is Dormant until the first Schedule call starts its worker. The
// worker runs every callback of that Active period, one at a time, in the
// order their timers fired. When the last outstanding callback has run or has
// been cancelled the worker exits and the Scheduler is Dormant again; the
// next Schedule starts a new worker.
//
//	s := schedule.New("retry")
//	h := s.Schedule(func() { probe() }, 2*time.Second)
//	...
//	h.Cancel()
//
// A callback may schedule further callbacks on its own Scheduler, which keeps
// the worker alive without a teardown in between.
package schedule
