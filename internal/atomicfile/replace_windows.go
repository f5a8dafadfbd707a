//go:build windows

package atomicfile

import "golang.org/x/sys/windows"

// os.Rename fails on Windows when dst exists, so use MoveFileEx.
func replace(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING)
}
