package vcpu_test

import (
	"testing"
	"time"

	"github.com/m68kernel/dispatch/vcpu"
)

func TestAcquireRunsImmediately(t *testing.T) {
	done := make(chan struct{})
	_, err := vcpu.Acquire(vcpu.AcquireAttr{
		Func: func(self *vcpu.VCPU) { close(done) },
	})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("vcpu never ran")
	}
}

func TestAcquireSuspendedWaitsForResume(t *testing.T) {
	ran := make(chan struct{})
	v, err := vcpu.Acquire(vcpu.AcquireAttr{
		SuspendedOnCreate: true,
		Func:              func(self *vcpu.VCPU) { close(ran) },
	})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	select {
	case <-ran:
		t.Fatal("suspended vcpu ran before Resume")
	case <-time.After(5 * time.Millisecond):
	}

	v.Resume()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("vcpu never ran after Resume")
	}
}

func TestSendSignalReachesTargetVCPU(t *testing.T) {
	started := make(chan *vcpu.VCPU, 1)
	signalled := make(chan int, 1)
	_, err := vcpu.Acquire(vcpu.AcquireAttr{
		Func: func(self *vcpu.VCPU) {
			started <- self
			signo, timedOut := self.WaitQueue().WaitForSignals(1<<5, time.Now().Add(time.Second))
			if !timedOut {
				signalled <- signo
			}
		},
	})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	self := <-started
	if !vcpu.SendSignal(self.ID(), 5) {
		t.Fatal("SendSignal reported no such vcpu")
	}

	select {
	case signo := <-signalled:
		if signo != 5 {
			t.Errorf("got signo %d, want 5", signo)
		}
	case <-time.After(time.Second):
		t.Fatal("signal never delivered")
	}
}

func TestSendGroupSignalReachesAllMembers(t *testing.T) {
	gid := vcpu.NewGroupID()
	const n = 3
	signalled := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		if _, err := vcpu.Acquire(vcpu.AcquireAttr{
			GroupID: gid,
			Func: func(self *vcpu.VCPU) {
				if _, timedOut := self.WaitQueue().WaitForSignals(1<<1, time.Now().Add(time.Second)); !timedOut {
					signalled <- struct{}{}
				}
			},
		}); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	time.Sleep(5 * time.Millisecond) // let every member reach its wait

	if got := vcpu.SendGroupSignal(gid, 1); got != n {
		t.Errorf("SendGroupSignal reached %d members, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		select {
		case <-signalled:
		case <-time.After(time.Second):
			t.Fatal("not all group members were signalled")
		}
	}
}

func TestSpecificRoundTrips(t *testing.T) {
	done := make(chan struct{})
	_, err := vcpu.Acquire(vcpu.AcquireAttr{
		Func: func(self *vcpu.VCPU) {
			self.SetSpecific("worker-7")
			if got := self.Specific(); got != "worker-7" {
				t.Errorf("got Specific() = %v, want worker-7", got)
			}
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	<-done
}
