//go:build windows

package singleinstance

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"

	"github.com/graaaaa/reconcile/internal/appinfo"
)

// AcquireLock acquires a session-scoped named mutex derived from lockPath,
// so each data directory has its own lock.
//
// Returns:
//   - release: function to call when shutting down (use with defer)
//   - ok: true if lock was acquired, false if another instance is running
//   - err: error if something went wrong
func AcquireLock(lockPath string) (release func(), ok bool, err error) {
	abs, err := filepath.Abs(lockPath)
	if err != nil {
		return nil, false, err
	}
	sum := sha256.Sum256([]byte(strings.ToLower(abs)))

	name, err := windows.UTF16PtrFromString(appinfo.MutexName + hex.EncodeToString(sum[:8]))
	if err != nil {
		return nil, false, err
	}

	h, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		// ERROR_ALREADY_EXISTS means another instance owns the mutex.
		if err == windows.ERROR_ALREADY_EXISTS {
			if h != 0 {
				windows.CloseHandle(h)
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	return func() {
		windows.CloseHandle(h)
	}, true, nil
}
