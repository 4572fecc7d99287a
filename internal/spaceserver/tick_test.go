package spaceserver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickLoopInvokesCallbacks(t *testing.T) {
	loop := NewTickLoop(10 * time.Millisecond)

	var count atomic.Int32
	loop.Register("counter", func() { count.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	assert.Eventually(t, func() bool {
		return count.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTickLoopUnregister(t *testing.T) {
	loop := NewTickLoop(10 * time.Millisecond)

	var count atomic.Int32
	loop.Register("counter", func() { count.Add(1) })
	loop.Unregister("counter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count.Load())
}

func TestTickLoopStopsOnCancel(t *testing.T) {
	loop := NewTickLoop(5 * time.Millisecond)

	var count atomic.Int32
	loop.Register("counter", func() { count.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	frozen := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, count.Load())
}

func TestTickLoopRejectsInvalidInterval(t *testing.T) {
	assert.Panics(t, func() { NewTickLoop(0) })
}
