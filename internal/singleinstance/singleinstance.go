// Package singleinstance guards a data directory against concurrent writers.
package singleinstance

import "errors"

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = errors.New("data directory is in use by another process")

// Acquire takes the lock identified by lockPath or returns ErrLocked.
// Call release on shutdown.
func Acquire(lockPath string) (release func(), err error) {
	release, ok, err := AcquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return release, nil
}
