//go:build darwin || freebsd

package looper

import (
	"golang.org/x/sys/unix"
	"time"
)

// AsTimer creates a periodic timer source. kqueue timers need no descriptor:
// the source registers an EVFILT_TIMER event identified by its id.
func AsTimer(interval time.Duration) *Source {
	if interval <= 0 {
		Logger.Panicf("timer interval must be positive, got %s", interval)
	}

	source := NewSource(nil, nil, nil, nil)
	source.SetRegistrationFunc(func(s *Source) Interest {
		return Interest{
			Ident:  s.ID(),
			Filter: unix.EVFILT_TIMER,
			Fflags: unix.NOTE_NSECONDS,
			Data:   interval.Nanoseconds(),
		}
	})
	return source
}
