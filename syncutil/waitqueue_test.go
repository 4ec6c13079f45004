package syncutil_test

import (
	"testing"
	"time"

	"github.com/m68kernel/dispatch/syncutil"
)

func TestWaitQueueRaiseThenWait(t *testing.T) {
	q := syncutil.NewWaitQueue()
	q.Raise(3)
	signo, timedOut := q.WaitForSignals(1<<3, time.Now().Add(time.Second))
	if timedOut {
		t.Fatal("unexpected timeout")
	}
	if signo != 3 {
		t.Errorf("got signo %d, want 3", signo)
	}
}

func TestWaitQueueMaskFiltersUnwantedSignals(t *testing.T) {
	q := syncutil.NewWaitQueue()
	q.Raise(1) // not in mask below

	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Raise(2)
	}()
	go func() {
		signo, timedOut := q.WaitForSignals(1<<2, time.Now().Add(time.Second))
		if timedOut || signo != 2 {
			t.Errorf("got signo=%d timedOut=%v, want signo=2 timedOut=false", signo, timedOut)
		}
		close(done)
	}()
	<-done
}

func TestWaitQueueTimeout(t *testing.T) {
	q := syncutil.NewWaitQueue()
	signo, timedOut := q.WaitForSignals(1, time.Now().Add(10*time.Millisecond))
	if !timedOut {
		t.Fatal("expected a timeout with nothing raised")
	}
	if signo != syncutil.NoSignal {
		t.Errorf("got signo %d, want NoSignal", signo)
	}
}
