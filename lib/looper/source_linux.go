package looper

import (
	"fmt"
	"golang.org/x/sys/unix"
	"time"
)

// AsTimer creates a periodic timer source backed by a timerfd. The first
// expiry happens after one interval. The reader drains the expiry counter, so
// the loop invokes the wake callback once per wake even if several intervals
// elapsed in between.
func AsTimer(interval time.Duration) *Source {
	if interval <= 0 {
		Logger.Panicf("timer interval must be positive, got %s", interval)
	}

	allocate := func() (Handles, error) {
		fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
		if err != nil {
			return NoHandles, fmt.Errorf("timerfd_create failed: %w", err)
		}

		period := unix.NsecToTimespec(interval.Nanoseconds())
		spec := unix.ItimerSpec{Interval: period, Value: period}
		if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
			_ = unix.Close(fd)
			return NoHandles, fmt.Errorf("timerfd_settime failed: %w", err)
		}
		return Handles{Read: fd, Write: fd}, nil
	}

	source := NewSource(allocate, closeHandles, drainExpirations, nil)
	source.SetRegistrationFunc(func(s *Source) Interest {
		return Interest{Handle: s.ReadHandle(), Events: unix.EPOLLIN}
	})
	return source
}

// drainExpirations reads the 8 byte expiry counter of a timerfd
func drainExpirations(handle int) {
	var buf [8]byte
	for {
		_, err := unix.Read(handle, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil && err != unix.EAGAIN {
			Logger.Panicf("could not read timer expirations: %v", err)
		}
		return
	}
}
