// Package locking provides non-blocking advisory file locks, shared
// for readers and exclusive for writers. The locks are advisory: they
// coordinate cooperating processes only and do not stop other code
// from touching the files.
package locking

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when the lock is currently held by a peer.
var ErrLocked = errors.New("file is locked by another process")

// LockedFile is an open file with an advisory lock held on it.
// Closing it releases the lock and closes the file, once.
type LockedFile struct {
	file   *os.File
	path   string
	closed bool
}

// File returns the underlying open file.
func (l *LockedFile) File() *os.File { return l.file }

// Path returns the path the file was opened with.
func (l *LockedFile) Path() string { return l.path }

// Close releases the lock and closes the file. Safe to call more than
// once; only the first call has effect.
func (l *LockedFile) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	unlock(l.file)
	return l.file.Close()
}

// OpenShared opens path read-only and takes a shared non-blocking
// lock. Returns ErrLocked (wrapped) when a peer holds an exclusive
// lock on the file.
func OpenShared(path string) (*LockedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return lockOpened(f, path, false)
}

// OpenExclusive opens path read-write, creating it when missing, and
// takes an exclusive non-blocking lock. The file contents are never
// modified when the lock cannot be taken, though the file itself may
// be created empty. Returns ErrLocked (wrapped) when a peer holds any
// lock on the file.
func OpenExclusive(path string) (*LockedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return lockOpened(f, path, true)
}

func lockOpened(f *os.File, path string, exclusive bool) (*LockedFile, error) {
	if err := lock(f, exclusive); err != nil {
		f.Close()
		if isWouldBlock(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, err
	}
	return &LockedFile{file: f, path: path}, nil
}
