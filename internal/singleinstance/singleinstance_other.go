//go:build !unix && !windows

package singleinstance

// AcquireLock is a no-op on platforms without file locking support.
func AcquireLock(lockPath string) (release func(), ok bool, err error) {
	return func() {}, true, nil
}
