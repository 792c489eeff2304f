//go:build darwin || freebsd

package looper

import (
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"
)

// Interest describes the kqueue registration of a source
type Interest struct {
	// Ident is the kevent identifier (a descriptor for EVFILT_READ, the source id for EVFILT_TIMER)
	Ident uint64
	// Filter is the kevent filter
	Filter int16
	// Fflags are the filter specific flags
	Fflags uint32
	// Data is the filter specific data (e.g. the timer period)
	Data int64
}

// ReadInterest returns the default registration: read readiness on handle
func ReadInterest(handle int) Interest {
	return Interest{Ident: uint64(handle), Filter: unix.EVFILT_READ}
}

// keventKey identifies a registration the way kqueue does
type keventKey struct {
	ident  uint64
	filter int16
}

// kqueueWaitSet implements WaitSet using kqueue
type kqueueWaitSet struct {
	handle  int
	sources *xsync.MapOf[uint64, registration]
	keys    *xsync.MapOf[keventKey, *Source]
	events  [1]unix.Kevent_t
}

// NewWaitSet creates a new kqueue backed WaitSet
func NewWaitSet() (WaitSet, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue failed: %w", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueWaitSet{
		handle:  kq,
		sources: xsync.NewMapOf[uint64, registration](),
		keys:    xsync.NewMapOf[keventKey, *Source](),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see looper.WaitSet)
// --------------------------------------------------------------------------

func (w *kqueueWaitSet) AddSource(source *Source) bool {
	if source == nil {
		return false
	}

	interest := source.interest()
	if _, loaded := w.sources.LoadOrStore(source.ID(), registration{source: source, interest: interest}); loaded {
		return false
	}
	key := keventKey{ident: interest.Ident, filter: interest.Filter}
	w.keys.Store(key, source)

	changes := []unix.Kevent_t{toKevent(interest, unix.EV_ADD|unix.EV_ENABLE)}
	if _, err := unix.Kevent(w.handle, changes, nil, nil); err != nil {
		w.sources.Delete(source.ID())
		w.keys.Delete(key)
		Logger.Panicf("could not register source %d (ident %d) with kqueue: %v", source.ID(), interest.Ident, err)
	}

	source.registrations.Add(1)
	return true
}

func (w *kqueueWaitSet) RemoveSource(source *Source) bool {
	if source == nil {
		return false
	}

	reg, ok := w.sources.LoadAndDelete(source.ID())
	if !ok {
		return false
	}
	w.keys.Delete(keventKey{ident: reg.interest.Ident, filter: reg.interest.Filter})

	// closing a descriptor removes its kevents, so errors are expected here
	changes := []unix.Kevent_t{toKevent(reg.interest, unix.EV_DELETE)}
	if _, err := unix.Kevent(w.handle, changes, nil, nil); err != nil {
		Logger.Debugf("deregistering source %d (ident %d): %v", source.ID(), reg.interest.Ident, err)
	}

	source.registrations.Add(-1)
	return true
}

func (w *kqueueWaitSet) Wait() *Source {
	for {
		n, err := unix.Kevent(w.handle, nil, w.events[:], nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			Logger.Panicf("kevent failed: %v", err)
		}
		if n != 1 {
			continue
		}

		ev := &w.events[0]
		source, ok := w.keys.Load(keventKey{ident: uint64(ev.Ident), filter: ev.Filter})
		if !ok {
			return nil
		}
		return source
	}
}

func (w *kqueueWaitSet) Close() error {
	return unix.Close(w.handle)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// toKevent converts an interest into a kevent change
func toKevent(interest Interest, flags int) unix.Kevent_t {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, int(interest.Ident), int(interest.Filter), flags)
	ev.Fflags = interest.Fflags
	ev.Data = interest.Data
	return ev
}
