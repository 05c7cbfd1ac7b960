package export

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is the advisory single-writer lock spec.md places at
// {traces-dir}/.inspector.lock.
const lockFileName = ".inspector.lock"

// acquireLock attempts a non-blocking exclusive lock on
// {dir}/.inspector.lock. ok is false when a peer process already holds the
// lock (spec.md's LockHeld condition), in which case the exporter that
// called acquireLock must switch to no-op mode; readers are unaffected
// since they never need the lock.
func acquireLock(dir string) (*flock.Flock, bool, error) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	return fl, ok, nil
}
