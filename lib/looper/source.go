package looper

import (
	"fmt"
	"golang.org/x/sys/unix"
	"sync"
	"sync/atomic"
)

// Handles is the pair of kernel handles a source is woken through. Unused
// handles are -1; read and write may be the same descriptor.
type Handles struct {
	Read  int
	Write int
}

// NoHandles is the value of a source that owns no kernel handles
var NoHandles = Handles{Read: -1, Write: -1}

// HandlesAllocator creates the handles of a source on first use
type HandlesAllocator func() (Handles, error)

// HandlesDeallocator releases the handles of a source
type HandlesDeallocator func(handles Handles)

// IOHandler is invoked with the read or write handle of a source
type IOHandler func(handle int)

// WakeFunc is invoked once per wake after the read handler
type WakeFunc func()

// RegistrationFunc decides which kernel event is registered for a source.
// Sources without a strategy are registered for read readiness on their read handle.
type RegistrationFunc func(source *Source) Interest

var (
	sourceIDs atomic.Uint64
	wakeToken = []byte{'w'}
)

// Source is a wakeable source: a pair of lazily allocated handles plus the
// callbacks the loop invokes when the kernel reports the source as ready.
type Source struct {
	id uint64

	mu          sync.Mutex
	allocator   HandlesAllocator
	deallocator HandlesDeallocator
	handles     Handles
	allocated   bool
	closed      bool
	wake        WakeFunc
	register    RegistrationFunc

	reader IOHandler
	writer IOHandler

	// number of wait sets the source is registered with
	registrations atomic.Int32
}

// NewSource creates a new source. The allocator runs at most once, on the
// first access to the handles; the deallocator runs exactly once on Close, and
// only if the allocator ran. Both may be nil.
func NewSource(allocator HandlesAllocator, deallocator HandlesDeallocator, reader, writer IOHandler) *Source {
	return &Source{
		id:          sourceIDs.Add(1),
		allocator:   allocator,
		deallocator: deallocator,
		handles:     NoHandles,
		reader:      reader,
		writer:      writer,
	}
}

// AsTrivial creates a self-wake source backed by a non-blocking pipe. Its
// writer puts one wake token into the pipe, its reader drains one.
func AsTrivial() *Source {
	return NewSource(allocatePipe, closeHandles, drainWakeToken, writeWakeToken)
}

// ID returns the process unique id of the source
func (s *Source) ID() uint64 {
	return s.id
}

// Handles returns the handles of the source, allocating them on first use.
// Allocation failure is fatal.
func (s *Source) Handles() Handles {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NoHandles
	}
	if !s.allocated {
		if s.allocator != nil {
			handles, err := s.allocator()
			if err != nil {
				Logger.Panicf("source %d: could not allocate handles: %v", s.id, err)
			}
			s.handles = handles
		}
		s.allocated = true
	}
	return s.handles
}

// ReadHandle returns the read handle, allocating the handles on first use
func (s *Source) ReadHandle() int {
	return s.Handles().Read
}

// WriteHandle returns the write handle, allocating the handles on first use
func (s *Source) WriteHandle() int {
	return s.Handles().Write
}

// Reader returns the read handler (may be nil)
func (s *Source) Reader() IOHandler {
	return s.reader
}

// Writer returns the write handler (may be nil)
func (s *Source) Writer() IOHandler {
	return s.writer
}

// SetWakeFunc sets the callback invoked after each wake
func (s *Source) SetWakeFunc(fn WakeFunc) {
	s.mu.Lock()
	s.wake = fn
	s.mu.Unlock()
}

// SetRegistrationFunc replaces the default read readiness registration.
// It must be set before the source is added to a wait set.
func (s *Source) SetRegistrationFunc(fn RegistrationFunc) {
	s.mu.Lock()
	s.register = fn
	s.mu.Unlock()
}

// OnAwoken invokes the wake callback if one is set
func (s *Source) OnAwoken() {
	s.mu.Lock()
	fn := s.wake
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Close releases the handles of the source. Calling Close on a source that is
// still registered with a wait set is a programming error and fatal.
func (s *Source) Close() {
	if n := s.registrations.Load(); n > 0 {
		Logger.Panicf("source %d closed while registered with %d wait set(s)", s.id, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.allocated && s.deallocator != nil {
		s.deallocator(s.handles)
	}
	s.handles = NoHandles
}

// interest returns the kernel registration of the source
func (s *Source) interest() Interest {
	s.mu.Lock()
	fn := s.register
	s.mu.Unlock()

	if fn != nil {
		return fn(s)
	}
	return ReadInterest(s.ReadHandle())
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// allocatePipe creates a non-blocking, close-on-exec pipe
func allocatePipe() (Handles, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return NoHandles, fmt.Errorf("pipe failed: %w", err)
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return NoHandles, fmt.Errorf("could not make pipe non-blocking: %w", err)
		}
	}

	return Handles{Read: fds[0], Write: fds[1]}, nil
}

// closeHandles closes both handles, once if they are the same descriptor
func closeHandles(handles Handles) {
	if handles.Read >= 0 {
		_ = unix.Close(handles.Read)
	}
	if handles.Write >= 0 && handles.Write != handles.Read {
		_ = unix.Close(handles.Write)
	}
}

// drainWakeToken reads exactly one wake token. An empty pipe means the token
// was already consumed.
func drainWakeToken(handle int) {
	buf := make([]byte, len(wakeToken))
	for {
		n, err := unix.Read(handle, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			Logger.Panicf("could not read wake token: %v", err)
		case n != len(wakeToken):
			Logger.Panicf("short read of wake token: %d bytes", n)
		}
		return
	}
}

// writeWakeToken writes exactly one wake token. A full pipe means the reader
// has enough pending wakes already.
func writeWakeToken(handle int) {
	for {
		n, err := unix.Write(handle, wakeToken)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			Logger.Panicf("could not write wake token: %v", err)
		case n != len(wakeToken):
			Logger.Panicf("short write of wake token: %d bytes", n)
		}
		return
	}
}
