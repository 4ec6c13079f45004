// Command dispatchdemo wires up a dispatcher, a repeating timer, a
// one-shot timer, and a signal handler, then runs for a short while so the
// pieces can be watched interacting. It is a demonstration harness, not a
// library: the interesting code is in github.com/m68kernel/dispatch.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/m68kernel/dispatch/dispatch"
	"github.com/m68kernel/dispatch/klog"
)

var (
	minWorkers = flag.Int("min-workers", 2, "minimum worker count")
	maxWorkers = flag.Int("max-workers", 8, "maximum worker count")
	verbose    = flag.Int("v", 0, "verbose log level")
	duration   = flag.Duration("duration", 3*time.Second, "how long to run before terminating")
)

func main() {
	flag.Parse()
	klog.Configure(klog.Level(*verbose), true)
	defer klog.Flush()

	d, err := dispatch.New(
		dispatch.WithConcurrency(*minWorkers, *maxWorkers),
		dispatch.WithName("dispatchdemo"),
	)
	if err != nil {
		klog.Fatalf("dispatch.New: %v", err)
	}

	const tickSignal = 10
	ticks := 0
	handler := &dispatch.Item{
		Func: func(*dispatch.Item) {
			ticks++
			fmt.Printf("signal %d delivered (count=%d)\n", tickSignal, ticks)
		},
	}
	if err := d.SignalMonitor(tickSignal, handler); err != nil {
		klog.Fatalf("SignalMonitor: %v", err)
	}

	if err := d.Repeating(time.Now().Add(200*time.Millisecond), 200*time.Millisecond,
		func(arg any) {
			fmt.Println("repeating timer fired:", arg)
			if err := d.SendSignal(tickSignal); err != nil {
				klog.Errorf("SendSignal: %v", err)
			}
		}, "tick"); err != nil {
		klog.Fatalf("Repeating: %v", err)
	}

	if err := d.After(time.Now().Add(1*time.Second), func(arg any) {
		fmt.Println("one-shot timer fired:", arg)
	}, "once"); err != nil {
		klog.Fatalf("After: %v", err)
	}

	for i := 0; i < 5; i++ {
		i := i
		if err := d.Async(func(arg any) {
			fmt.Printf("async job %v ran on worker\n", arg)
		}, i); err != nil {
			klog.Errorf("Async: %v", err)
		}
	}

	result, err := d.Sync(func(arg any) int {
		return arg.(int) * arg.(int)
	}, 7)
	if err != nil {
		klog.Errorf("Sync: %v", err)
	} else {
		fmt.Println("sync result:", result)
	}

	time.Sleep(*duration)

	if err := d.Terminate(dispatch.CancelAll | dispatch.AwaitAll); err != nil {
		klog.Errorf("Terminate: %v", err)
	}
	if err := d.Destroy(); err != nil {
		klog.Errorf("Destroy: %v", err)
	}
	fmt.Println("dispatchdemo done")
}
