//go:build !windows

package forestkv

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data (not necessarily metadata) to stable storage.
// Mirrors the teacher's fsync_unix.go build-tag split.
func fdatasync(file *os.File) error {
	if file == nil {
		return nil
	}
	return unix.Fdatasync(int(file.Fd()))
}
