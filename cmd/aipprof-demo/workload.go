package main

import (
	"context"
	"math/rand"
	"time"
)

const (
	cpuTime     = 50 * time.Millisecond
	networkTime = 50 * time.Millisecond

	retained = 256
)

// runWorkload alternates cpu burn, idle waiting and allocation so that each
// profile kind has something to show.
func runWorkload(ctx context.Context) {
	var live [retained][]byte
	for i := 0; ctx.Err() == nil; i++ {
		cpuIntensiveWorkload()
		idleWorkload(ctx)
		live[i%retained] = memoryAllocHeap()
	}
}

func cpuIntensiveWorkload() {
	st := time.Now()
	d := data{}
	for time.Since(st) < cpuTime {
		d.cpuIntensiveWorkloadCore()
	}
}

type data struct{}

func (d data) cpuIntensiveWorkloadCore() {
	for i := 0; i < 10000; i++ {
		_ = i
	}
}

func idleWorkload(ctx context.Context) {
	select {
	case <-time.After(networkTime):
	case <-ctx.Done():
	}
}

func memoryAllocHeap() []byte {
	return make([]byte, rand.Intn(20000))
}
