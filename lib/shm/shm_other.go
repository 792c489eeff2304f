//go:build darwin || freebsd

package shm

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"os"
	"path/filepath"
)

// maxNameAttempts bounds the search for an unused temp file name
const maxNameAttempts = 25

// createHandle creates an exclusive temp file and unlinks it right away, so
// only the handle keeps the memory alive
func createHandle() (int, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := filepath.Join(os.TempDir(), "dloop-shm-"+uuid.NewString())

		handle, err := unix.Open(name, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
		if errors.Is(err, unix.EEXIST) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return -1, err
		}

		if err := unix.Unlink(name); err != nil {
			Logger.Warningf("could not unlink %s: %v", name, err)
		}
		return handle, nil
	}
	return -1, fmt.Errorf("no unused name after %d attempts", maxNameAttempts)
}
