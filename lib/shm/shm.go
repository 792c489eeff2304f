package shm

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
	"sync"
)

var Logger = logger.GetLogger("shm")

// Segment is a shared memory segment mapped read/write into this process. Its
// handle can be sent to another process as an attachment, which maps the same
// memory with Map.
type Segment struct {
	mu     sync.Mutex
	handle int
	size   int
	data   []byte
}

// New creates an anonymous segment of size bytes and maps it
func New(size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid segment size %d", size)
	}

	handle, err := createHandle()
	if err != nil {
		return nil, fmt.Errorf("could not create shared memory: %w", err)
	}

	if err := unix.Ftruncate(handle, int64(size)); err != nil {
		_ = unix.Close(handle)
		return nil, fmt.Errorf("could not resize shared memory to %d bytes: %w", size, err)
	}

	segment, err := Map(handle, size)
	if err != nil {
		_ = unix.Close(handle)
		return nil, err
	}

	Logger.Debugf("created segment of %d bytes (handle %d)", size, handle)
	return segment, nil
}

// Map maps size bytes of an existing segment handle, e.g. one received as an
// attachment. The segment takes ownership of the handle.
func Map(handle int, size int) (*Segment, error) {
	data, err := unix.Mmap(handle, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not map %d bytes of handle %d: %w", size, handle, err)
	}

	return &Segment{
		handle: handle,
		size:   size,
		data:   data,
	}, nil
}

// Bytes returns the mapped memory. The slice is invalid after Close.
func (s *Segment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Size returns the mapped size in bytes
func (s *Segment) Size() int {
	return s.size
}

// Handle returns the segment handle, -1 after Close
func (s *Segment) Handle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// IsReady reports whether the segment is still mapped
func (s *Segment) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

// Close unmaps the memory and closes the handle. Closing twice is a no-op.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil
	}

	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.handle); err == nil {
		err = cerr
	}
	s.handle = -1

	if err != nil {
		return fmt.Errorf("could not release segment: %w", err)
	}
	return nil
}
