// Package dispatch implements a cooperative, multi-worker task dispatcher:
// callers submit items, timers, and signal handlers to a Dispatcher, which
// load-balances them across a pool of vcpus (github.com/m68kernel/dispatch/vcpu)
// that each run a FIFO work queue plus a shared, deadline-sorted timer
// queue and a signal fan-out table.
//
// A Dispatcher is created with New, configured via Attr/Option, and torn
// down with Terminate followed by Destroy. Submit, Async, and Sync admit
// plain work; Timer, After, and Repeating admit deadline-based work;
// SignalMonitor registers a repeating handler for a signal number.
// CancelItem, Cancel, and ItemCancelled support cooperative cancellation:
// a cancelled-but-already-executing item is only asked to stop via its
// FlagCancelled bit, observed through Item.IsCancelled or the
// CurrentItem/CancelCurrentItem package functions.
//
// The process's main goroutine can additionally adopt itself as a worker
// for the singleton returned by MainQueue, by calling RunMainQueue once.
package dispatch
