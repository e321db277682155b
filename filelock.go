package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// fileLock is an exclusive claim on an output file, held through a sibling
// "<path>.lock" file so that two exports to the same path never interleave.
type fileLock struct {
	lockFile *os.File
	lockPath string
	released bool
}

// lockPolicy controls how long acquire waits and when a leftover lock file
// from a crashed process may be taken over.
type lockPolicy struct {
	attempts   int
	delay      time.Duration
	staleAfter time.Duration
}

var defaultLockPolicy = lockPolicy{
	attempts:   50,
	delay:      100 * time.Millisecond,
	staleAfter: 30 * time.Second,
}

// acquireFileLock locks filePath with the default policy.
func acquireFileLock(ctx context.Context, filePath string) (*fileLock, error) {
	return defaultLockPolicy.acquire(ctx, filePath)
}

func (p lockPolicy) acquire(ctx context.Context, filePath string) (*fileLock, error) {
	lockPath := filePath + ".lock"

	for range p.attempts {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID helps whoever finds a leftover lock
			fmt.Fprintf(lockFile, "%d", os.Getpid())
			return &fileLock{lockFile: lockFile, lockPath: lockPath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to acquire file lock: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil &&
			time.Since(info.ModTime()) > p.staleAfter {
			if remErr := os.Remove(lockPath); remErr != nil && !errors.Is(remErr, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove stale lock file %s: %w", lockPath, remErr)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for file lock: %w", ctx.Err())
		case <-time.After(p.delay):
		}
	}

	return nil, fmt.Errorf(
		"timeout waiting for file lock %s after %v",
		lockPath,
		time.Duration(p.attempts)*p.delay,
	)
}

// release drops the lock. Releasing twice is a no-op.
func (fl *fileLock) release() error {
	if fl.released {
		return nil
	}
	fl.released = true
	if fl.lockFile != nil {
		fl.lockFile.Close()
	}
	return os.Remove(fl.lockPath)
}
