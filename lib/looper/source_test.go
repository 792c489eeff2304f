package looper

import (
	"errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"testing"
)

func TestSourceAllocatesLazilyAndOnce(t *testing.T) {
	allocations := 0
	deallocations := 0

	source := NewSource(
		func() (Handles, error) {
			allocations++
			return allocatePipe()
		},
		func(h Handles) {
			deallocations++
			closeHandles(h)
		},
		nil, nil,
	)

	if allocations != 0 {
		t.Fatalf("Handles allocated before first use")
	}

	first := source.Handles()
	second := source.Handles()
	if first != second {
		t.Errorf("Handles changed between calls: %+v != %+v", first, second)
	}
	if source.ReadHandle() != first.Read || source.WriteHandle() != first.Write {
		t.Errorf("ReadHandle/WriteHandle do not match Handles()")
	}
	if allocations != 1 {
		t.Errorf("Expected exactly one allocation, got %d", allocations)
	}

	source.Close()
	source.Close()
	if deallocations != 1 {
		t.Errorf("Expected exactly one deallocation, got %d", deallocations)
	}
	if source.Handles() != NoHandles {
		t.Errorf("Closed source still reports handles")
	}
}

func TestSourceWithoutAllocationIsNotDeallocated(t *testing.T) {
	deallocated := false
	source := NewSource(allocatePipe, func(Handles) { deallocated = true }, nil, nil)
	source.Close()

	if deallocated {
		t.Error("Deallocator ran although handles were never allocated")
	}
}

func TestSourceAllocationFailureIsFatal(t *testing.T) {
	source := NewSource(func() (Handles, error) {
		return NoHandles, errors.New("no descriptors left")
	}, nil, nil, nil)

	require.Panics(t, func() { source.Handles() })
}

func TestTrivialSourceWakeToken(t *testing.T) {
	source := AsTrivial()
	defer source.Close()

	source.Writer()(source.WriteHandle())

	buf := make([]byte, 4)
	n, err := unix.Read(source.ReadHandle(), buf)
	require.NoError(t, err)
	require.Equal(t, wakeToken, buf[:n])

	// draining an empty pipe is a no-op
	source.Reader()(source.ReadHandle())
}

func TestOnAwokenCallsWakeFunc(t *testing.T) {
	source := NewSource(nil, nil, nil, nil)
	source.OnAwoken() // no callback set

	called := 0
	source.SetWakeFunc(func() { called++ })
	source.OnAwoken()
	source.OnAwoken()

	require.Equal(t, 2, called)
}

func TestCloseRegisteredSourceIsFatal(t *testing.T) {
	ws, err := NewWaitSet()
	require.NoError(t, err)
	defer ws.Close()

	source := AsTrivial()
	require.True(t, ws.AddSource(source))
	require.Panics(t, func() { source.Close() })

	require.True(t, ws.RemoveSource(source))
	require.NotPanics(t, func() { source.Close() })
}

func TestWaitSetAddRemove(t *testing.T) {
	ws, err := NewWaitSet()
	require.NoError(t, err)
	defer ws.Close()

	source := AsTrivial()
	defer source.Close()

	require.False(t, ws.AddSource(nil))
	require.False(t, ws.RemoveSource(nil))
	require.False(t, ws.RemoveSource(source), "removing an unregistered source must be a no-op")

	require.True(t, ws.AddSource(source))
	require.False(t, ws.AddSource(source), "adding twice must be a no-op")

	source.Writer()(source.WriteHandle())
	require.Same(t, source, ws.Wait())

	require.True(t, ws.RemoveSource(source))
	require.False(t, ws.RemoveSource(source))
}

func TestWaitSetDistinguishesSources(t *testing.T) {
	ws, err := NewWaitSet()
	require.NoError(t, err)
	defer ws.Close()

	a := AsTrivial()
	b := AsTrivial()
	defer a.Close()
	defer b.Close()

	require.True(t, ws.AddSource(a))
	require.True(t, ws.AddSource(b))
	defer ws.RemoveSource(a)
	defer ws.RemoveSource(b)

	b.Writer()(b.WriteHandle())
	require.Same(t, b, ws.Wait())
	b.Reader()(b.ReadHandle())

	a.Writer()(a.WriteHandle())
	require.Same(t, a, ws.Wait())
	a.Reader()(a.ReadHandle())
}
