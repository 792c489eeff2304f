package looper

import (
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

// runLoop runs l.Loop in its own goroutine and returns a channel closed when it returns
func runLoop(l *Looper) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Loop()
	}()
	return done
}

// waitDone fails the test if done is not closed within timeout
func waitDone(t *testing.T, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("loop did not return within %s", timeout)
	}
}

func newLooper(t *testing.T) *Looper {
	t.Helper()
	l, err := New()
	if err != nil {
		t.Fatalf("Failed to create looper: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestTerminateWakesBlockedLoop(t *testing.T) {
	l := newLooper(t)

	done := runLoop(l)
	time.Sleep(20 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("loop returned without being terminated")
	default:
	}

	l.Terminate()
	waitDone(t, done, 2*time.Second)
}

func TestLoopCanRunAgainAfterTerminate(t *testing.T) {
	l := newLooper(t)

	for i := 0; i < 3; i++ {
		done := runLoop(l)
		l.Terminate()
		waitDone(t, done, 2*time.Second)
	}
}

func TestTimerFiresRepeatedly(t *testing.T) {
	l := newLooper(t)

	const interval = 20 * time.Millisecond
	const wakes = 5

	timer := AsTimer(interval)
	defer timer.Close()

	var count atomic.Int32
	start := time.Now()
	timer.SetWakeFunc(func() {
		if count.Add(1) == wakes {
			l.Terminate()
		}
	})

	if !l.AddSource(timer) {
		t.Fatal("AddSource returned false for a new timer")
	}

	done := runLoop(l)
	waitDone(t, done, 5*time.Second)
	elapsed := time.Since(start)

	if !l.RemoveSource(timer) {
		t.Fatal("RemoveSource returned false for a registered timer")
	}

	if got := count.Load(); got != wakes {
		t.Errorf("Expected %d wakes, got %d", wakes, got)
	}
	// the first expiry happens one interval after arming
	if elapsed < (wakes-1)*interval {
		t.Errorf("Timer fired too fast: %d wakes in %s", wakes, elapsed)
	}
}

func TestPostRunsTasksInOrder(t *testing.T) {
	l := newLooper(t)
	done := runLoop(l)

	var order []int
	for i := 0; i < 10; i++ {
		l.Post(func() { order = append(order, i) })
	}
	l.Post(l.Terminate)

	waitDone(t, done, 2*time.Second)

	require.Len(t, order, 10)
	for i, v := range order {
		require.Equal(t, i, v, "tasks ran out of order")
	}
}

func TestPostFromTask(t *testing.T) {
	l := newLooper(t)
	done := runLoop(l)

	l.Post(func() {
		l.Post(l.Terminate)
	})

	waitDone(t, done, 2*time.Second)
}

func TestTerminateBeforeLoop(t *testing.T) {
	l := newLooper(t)

	l.Terminate()
	done := runLoop(l)
	waitDone(t, done, 2*time.Second)

	// the flag is reset: a new loop blocks until terminated again
	done = runLoop(l)
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("loop returned although the terminate flag should have been reset")
	default:
	}
	l.Terminate()
	waitDone(t, done, 2*time.Second)
}

func TestCloseUnusedLooper(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.Nil(t, l.trivial, "closing must not create the self-wake source")
}
