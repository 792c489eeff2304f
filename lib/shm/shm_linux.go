package shm

import "golang.org/x/sys/unix"

// createHandle creates an anonymous memory file
func createHandle() (int, error) {
	return unix.MemfdCreate("dloop-shm", unix.MFD_CLOEXEC)
}
