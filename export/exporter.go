// Package export implements the file span exporter (C4): finished spans
// are grouped by session and persisted as per-session gzipped JSONL files,
// behind an LRU-bounded cache of open writers and a process-scoped advisory
// lock.
//
// Exporter implements go.opentelemetry.io/otel/sdk/trace.SpanExporter, so
// it plugs directly into an sdktrace.BatchSpanProcessor — spans reach
// ExportSpans off the hot path of whatever emitted them.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	lru "github.com/hashicorp/golang-lru/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mcp-agent-inspector/inspector/telemetry"
)

// NoticeKind discriminates the typed lifecycle notices the exporter
// publishes (see SUPPLEMENTED FEATURES in SPEC_FULL.md): they ride the same
// bus as session lifecycle events so a UI can observe exporter health
// without scraping logs.
type NoticeKind string

const (
	NoticeExporterDisabled NoticeKind = "ExporterDisabled"
	NoticeDiskSpaceLow     NoticeKind = "DiskSpaceLow"
)

// OnNotice is invoked at most once per transition into a given notice kind.
type OnNotice func(kind NoticeKind, detail string)

// Config configures an Exporter.
type Config struct {
	// TracesDir is the directory trace files are written under. Defaults
	// to "~/.mcp_traces" when empty, per spec.md §4.4.
	TracesDir string
	// MaxWriters bounds the LRU of open gzip writers. Defaults to 50.
	MaxWriters int
	// RotateBytes is the uncompressed-ingest threshold that triggers a
	// chunk rotation. Defaults to 100 MiB.
	RotateBytes int64
	Logger      telemetry.Logger
	OnNotice    OnNotice
}

// Exporter is a sdktrace.SpanExporter that writes ended spans to per-session
// gzip JSONL files.
type Exporter struct {
	dir         string
	rotateBytes int64
	logger      telemetry.Logger
	onNotice    OnNotice

	mu      sync.Mutex
	writers *lru.Cache[string, *writerEntry]

	lock       interface{ Unlock() error }
	disabled   bool
	diskLow    bool
}

// New resolves the traces directory (falling back to a temp directory on
// permission failure), acquires the single-writer advisory lock, and
// returns a ready Exporter. If the lock is already held by a peer process,
// New still returns a usable Exporter — one already switched to no-op mode,
// per spec.md's LockHeld semantics — rather than an error, since readers
// must keep working regardless of exporter state.
func New(cfg Config) (*Exporter, error) {
	dir := cfg.TracesDir
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".mcp_traces")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		if errors.Is(err, os.ErrPermission) {
			fallback := filepath.Join(os.TempDir(), "mcp_traces")
			logger.Warn(context.Background(), "traces dir not writable, falling back to temp dir", "dir", dir, "fallback", fallback, "err", err.Error())
			dir = fallback
			if err2 := os.MkdirAll(dir, dirPerm); err2 != nil {
				return nil, err2
			}
		} else {
			return nil, err
		}
	}

	maxWriters := cfg.MaxWriters
	if maxWriters <= 0 {
		maxWriters = defaultMaxWriters
	}
	rotateBytes := cfg.RotateBytes
	if rotateBytes <= 0 {
		rotateBytes = defaultRotateBytes
	}

	e := &Exporter{
		dir:         dir,
		rotateBytes: rotateBytes,
		logger:      logger,
		onNotice:    cfg.OnNotice,
	}

	cache, err := lru.NewWithEvict(maxWriters, func(_ string, w *writerEntry) {
		_ = w.Close()
	})
	if err != nil {
		return nil, err
	}
	e.writers = cache

	fl, ok, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.disabled = true
		e.notify(NoticeExporterDisabled, "advisory lock held by another process")
	} else {
		e.lock = fl
	}
	return e, nil
}

// ExportSpans implements sdktrace.SpanExporter. It groups spans by their
// session.id attribute (sessionIDOf), appends each as one JSON line to the
// corresponding writer, and returns the first fatal error encountered after
// attempting every span — a single span failure quarantines that session's
// writer and continues rather than aborting the whole batch.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.isDisabled() {
		return nil
	}

	var firstErr error
	for _, span := range spans {
		line, err := json.Marshal(toSpanLine(span))
		if err != nil {
			e.logger.Warn(ctx, "failed to marshal span, skipping", "err", err.Error())
			continue
		}
		sessionID := sessionIDOf(span)
		if err := e.writeLine(sessionID, line); err != nil {
			if isDiskFull(err) {
				e.handleDiskFull(ctx, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			// Gzip/IO error on append: quarantine that session's writer
			// and keep going with the rest of the batch.
			e.logger.Warn(ctx, "quarantining trace writer after append error", "session_id", sessionID, "err", err.Error())
			e.quarantineSession(sessionID)
			continue
		}
		e.clearDiskFull()
	}
	return firstErr
}

func (e *Exporter) writeLine(sessionID string, line []byte) error {
	e.mu.Lock()
	w, ok := e.writers.Get(sessionID)
	if !ok {
		w = newWriterEntry(e.dir, sessionID, e.rotateBytes)
		e.writers.Add(sessionID, w)
	}
	e.mu.Unlock()
	return w.writeLine(line)
}

func (e *Exporter) quarantineSession(sessionID string) {
	e.mu.Lock()
	w, ok := e.writers.Get(sessionID)
	e.mu.Unlock()
	if ok {
		w.quarantine()
	}
}

func (e *Exporter) handleDiskFull(ctx context.Context, err error) {
	e.mu.Lock()
	first := !e.diskLow
	e.diskLow = true
	e.mu.Unlock()
	if first {
		e.logger.Warn(ctx, "disk full, exporter entering no-op mode", "err", err.Error())
		e.notify(NoticeDiskSpaceLow, err.Error())
	}
}

func (e *Exporter) clearDiskFull() {
	e.mu.Lock()
	e.diskLow = false
	e.mu.Unlock()
}

func (e *Exporter) isDisabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled
}

func (e *Exporter) notify(kind NoticeKind, detail string) {
	if e.onNotice != nil {
		e.onNotice(kind, detail)
	}
}

// Shutdown flushes and closes every open writer and releases the advisory
// lock, per spec.md §5's shutdown sequence ("drains the exporter LRU ...
// releases the advisory lock").
func (e *Exporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range e.writers.Keys() {
		if w, ok := e.writers.Peek(key); ok {
			_ = w.Close()
		}
	}
	e.writers.Purge()
	if e.lock != nil {
		return e.lock.Unlock()
	}
	return nil
}

func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
