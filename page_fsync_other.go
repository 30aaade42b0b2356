//go:build windows

package forestkv

import "os"

// fdatasync falls back to a full Sync on platforms without fdatasync.
func fdatasync(file *os.File) error {
	if file == nil {
		return nil
	}
	return file.Sync()
}
