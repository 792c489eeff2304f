package looper

import (
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"
)

// Interest describes the epoll registration of a source
type Interest struct {
	// Handle is the descriptor registered with epoll
	Handle int
	// Events is the epoll event mask (level triggered)
	Events uint32
}

// ReadInterest returns the default registration: read readiness on handle
func ReadInterest(handle int) Interest {
	return Interest{Handle: handle, Events: unix.EPOLLIN}
}

// epollWaitSet implements WaitSet using epoll
type epollWaitSet struct {
	handle  int
	sources *xsync.MapOf[uint64, registration]
	events  [1]unix.EpollEvent
}

// NewWaitSet creates a new epoll backed WaitSet
func NewWaitSet() (WaitSet, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1 failed: %w", err)
	}
	return &epollWaitSet{
		handle:  fd,
		sources: xsync.NewMapOf[uint64, registration](),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see looper.WaitSet)
// --------------------------------------------------------------------------

func (w *epollWaitSet) AddSource(source *Source) bool {
	if source == nil {
		return false
	}

	interest := source.interest()
	if _, loaded := w.sources.LoadOrStore(source.ID(), registration{source: source, interest: interest}); loaded {
		return false
	}

	ev := unix.EpollEvent{Events: interest.Events}
	putToken(&ev, source.ID())
	if err := unix.EpollCtl(w.handle, unix.EPOLL_CTL_ADD, interest.Handle, &ev); err != nil {
		w.sources.Delete(source.ID())
		Logger.Panicf("could not register source %d (handle %d) with epoll: %v", source.ID(), interest.Handle, err)
	}

	source.registrations.Add(1)
	return true
}

func (w *epollWaitSet) RemoveSource(source *Source) bool {
	if source == nil {
		return false
	}

	reg, ok := w.sources.LoadAndDelete(source.ID())
	if !ok {
		return false
	}

	// closing a descriptor removes it from epoll, so EBADF and ENOENT are expected here
	if err := unix.EpollCtl(w.handle, unix.EPOLL_CTL_DEL, reg.interest.Handle, nil); err != nil {
		Logger.Debugf("deregistering source %d (handle %d): %v", source.ID(), reg.interest.Handle, err)
	}

	source.registrations.Add(-1)
	return true
}

func (w *epollWaitSet) Wait() *Source {
	for {
		n, err := unix.EpollWait(w.handle, w.events[:], -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			Logger.Panicf("epoll_wait failed: %v", err)
		}
		if n != 1 {
			continue
		}

		reg, ok := w.sources.Load(takeToken(&w.events[0]))
		if !ok {
			return nil
		}
		return reg.source
	}
}

func (w *epollWaitSet) Close() error {
	return unix.Close(w.handle)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// putToken stores the source id in the user data of the epoll event
func putToken(ev *unix.EpollEvent, token uint64) {
	ev.Fd = int32(uint32(token))
	ev.Pad = int32(uint32(token >> 32))
}

// takeToken reads the source id back from the user data of an epoll event
func takeToken(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}
