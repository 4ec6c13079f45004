// Copyright 2016 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package syncutil provides the mutex, condition variable, and
// signal-gated wait-queue the dispatcher uses to guard its state and to
// park workers between units of work.
//
// Mu and CV are adapted from nsync's Mu/CV: the mutex exposes TryLock (Go's
// sync.Mutex did not, at the time this code was written against), and the
// condition variable's wait calls take the mutex as an explicit argument
// and support an absolute deadline, to remind the reader that a wait has a
// side effect on the mutex and to let waits time out or be cancelled. Unlike
// nsync's CV, which implements a lock-free spinlock-guarded waiter list plus
// an optimization that transfers a woken waiter directly onto the mutex's
// own queue, this CV uses Go's native broadcast-by-channel-close idiom: the
// dispatcher only ever calls Broadcast (every wait here is Mesa-style,
// re-testing its predicate in a loop), so the performance case nsync
// optimizes for — Signal() under heavy contention — does not arise.
package syncutil

import (
	"sync"
	"sync/atomic"
)

// A Mu is a mutex. Its zero value is valid and unlocked.
//
// A Mu can be "free" or held by a single goroutine. A goroutine that
// acquires it should eventually release it; it is not legal to acquire a Mu
// in one goroutine and release it in another.
type Mu struct {
	mu     sync.Mutex
	locked atomic.Bool // diagnostic only, for AssertHeld; not itself synchronization
}

// Lock blocks until mu is free and then acquires it.
func (m *Mu) Lock() {
	m.mu.Lock()
	m.locked.Store(true)
}

// TryLock attempts to acquire mu without blocking, and reports whether it
// succeeded.
func (m *Mu) TryLock() bool {
	if m.mu.TryLock() {
		m.locked.Store(true)
		return true
	}
	return false
}

// Unlock releases mu.
func (m *Mu) Unlock() {
	m.locked.Store(false)
	m.mu.Unlock()
}

// AssertHeld panics if mu is not currently held by any goroutine. It is a
// debugging aid, not a synchronization primitive: it cannot tell whether the
// CALLING goroutine holds mu, only whether some goroutine does.
func (m *Mu) AssertHeld() {
	if !m.locked.Load() {
		panic("syncutil.Mu not held")
	}
}
