//go:build !windows

package atomicfile

import "os"

// On POSIX systems os.Rename atomically replaces an existing file.
func replace(src, dst string) error {
	return os.Rename(src, dst)
}
