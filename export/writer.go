package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// defaultMaxWriters and defaultRotateBytes are the C4 defaults from
// spec.md §4.4: an LRU of at most 50 open writers, rotating a writer once
// its uncompressed ingest count surpasses 100 MiB.
const (
	defaultMaxWriters  = 50
	defaultRotateBytes = 100 * 1024 * 1024
)

// writerEntry owns one session's currently-open gzip writer. chunk 0 is the
// base "{session}.jsonl.gz" file; chunk >= 1 is a rotated
// "{session}_chunk_{n}.jsonl.gz" file.
type writerEntry struct {
	mu           sync.Mutex
	dir          string
	sessionID    string
	rotateBytes  int64
	chunk        int
	file         *os.File
	gz           *gzip.Writer
	uncompressed int64
}

func newWriterEntry(dir, sessionID string, rotateBytes int64) *writerEntry {
	return &writerEntry{dir: dir, sessionID: sessionID, rotateBytes: rotateBytes}
}

func (w *writerEntry) path() string {
	if w.chunk == 0 {
		return filepath.Join(w.dir, w.sessionID+".jsonl.gz")
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s_chunk_%d.jsonl.gz", w.sessionID, w.chunk))
}

func (w *writerEntry) openLocked() error {
	f, err := os.OpenFile(w.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	w.file = f
	w.gz = gzip.NewWriter(f)
	return nil
}

// writeLine appends one JSON line (without its trailing newline) to the
// currently open chunk. When this write takes the chunk's uncompressed count
// past rotateBytes, the chunk is closed and the next one is opened right
// away, so later lines land in the new chunk.
func (w *writerEntry) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gz == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}
	n, err := w.gz.Write(line)
	if err == nil {
		var m int
		m, err = w.gz.Write([]byte{'\n'})
		n += m
	}
	if err == nil {
		err = w.gz.Flush()
	}
	if err != nil {
		return err
	}
	w.uncompressed += int64(n)
	if w.uncompressed > w.rotateBytes {
		return w.rotateLocked()
	}
	return nil
}

func (w *writerEntry) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	w.chunk++
	w.uncompressed = 0
	return w.openLocked()
}

func (w *writerEntry) closeLocked() error {
	if w.gz == nil {
		return nil
	}
	gzErr := w.gz.Close()
	fileErr := w.file.Close()
	w.gz = nil
	w.file = nil
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// Close flushes and closes the currently open chunk. Safe to call on an
// entry with no chunk open.
func (w *writerEntry) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// quarantine closes the current chunk (best-effort) and renames it to
// "{name}.bad", then resets the entry to open a fresh chunk 0 on the next
// write. This implements spec.md's "close the writer, rename the offending
// file to {name}.bad, create a new file for the session, continue" rule: a
// single span failure never drops the rest of the batch.
func (w *writerEntry) quarantine() {
	w.mu.Lock()
	defer w.mu.Unlock()
	bad := w.path()
	_ = w.closeLocked()
	_ = os.Rename(bad, bad+".bad")
	w.chunk = 0
	w.uncompressed = 0
}
