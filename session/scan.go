package session

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/mcp-agent-inspector/inspector/telemetry"
)

// fileNamePattern matches both a base trace file and a rotated chunk,
// capturing the session-id in group 1.
var fileNamePattern = regexp.MustCompile(`^([A-Za-z0-9_-]{6,}?)(?:_chunk_(\d+))?\.jsonl\.gz$`)

// line is the subset of export's spanLine JSON shape scan.go needs to
// derive SessionMeta: start/end timestamps, status, and the session
// metadata the lifecycle subscriber stamps onto spans.
type line struct {
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time"`
	Status     string         `json:"status"`
	Attributes map[string]any `json:"attributes"`
}

type cachedMeta struct {
	mtime int64
	line  line
}

// FileScanner enumerates trace files under a traces directory and derives
// SessionMeta per spec.md §4.5. Extraction results are cached keyed by
// (path, mtime), bounded to 1000 entries.
type FileScanner struct {
	dir    string
	logger telemetry.Logger
	cache  *lru.Cache[string, cachedMeta]
}

// NewFileScanner constructs a scanner rooted at dir. logger may be nil.
func NewFileScanner(dir string, logger telemetry.Logger) *FileScanner {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	cache, _ := lru.New[string, cachedMeta](1000)
	return &FileScanner{dir: dir, logger: logger, cache: cache}
}

// Scan enumerates *.jsonl.gz files (including rotated chunks), groups them
// by session-id, and returns one Meta per session derived from the
// earliest chunk's first line and the latest chunk's last line. Corrupt
// files are logged and skipped rather than failing the whole scan.
func (s *FileScanner) Scan(ctx context.Context) ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type chunkFile struct {
		path string
		n    int
	}
	bySession := map[string][]chunkFile{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		sessionID := m[1]
		n := 0
		if m[2] != "" {
			n = atoiSafe(m[2])
		}
		bySession[sessionID] = append(bySession[sessionID], chunkFile{path: filepath.Join(s.dir, e.Name()), n: n})
	}

	out := make([]Meta, 0, len(bySession))
	for sessionID, chunks := range bySession {
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].n < chunks[j].n })
		meta, ok := s.metaFor(ctx, sessionID, chunks[0].path, chunks[len(chunks)-1].path)
		if ok {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (s *FileScanner) metaFor(ctx context.Context, sessionID, firstPath, lastPath string) (Meta, bool) {
	first, ok := s.firstLine(ctx, firstPath)
	if !ok {
		return Meta{}, false
	}
	last, ok := s.lastLine(ctx, lastPath)
	if !ok {
		last = first
	}

	meta := Meta{
		ID:        sessionID,
		Status:    StatusRunning,
		Engine:    EngineLocal,
		StartedAt: first.StartTime,
	}
	if v, ok := first.Attributes["session.engine"].(string); ok && v != "" {
		meta.Engine = Engine(v)
	}
	if v, ok := first.Attributes["session.title"].(string); ok {
		meta.Title = v
	}
	if v, ok := last.Attributes["session.status"].(string); ok && v != "" {
		meta.Status = Status(v)
	} else if last.Status == "ERROR" {
		meta.Status = StatusFailed
	}
	if last.EndTime != nil {
		meta.EndedAt = last.EndTime
	}
	if v, ok := last.Attributes["session.ended_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			meta.EndedAt = &t
		}
	}
	return meta, true
}

func (s *FileScanner) firstLine(ctx context.Context, path string) (line, bool) {
	if cached, ok := s.fromCache(path); ok {
		return cached, true
	}
	f, err := os.Open(path)
	if err != nil {
		return line{}, false
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		s.quarantine(ctx, path, err)
		return line{}, false
	}
	defer gz.Close()
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	if !sc.Scan() {
		return line{}, false
	}
	var l line
	if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
		s.quarantine(ctx, path, err)
		return line{}, false
	}
	s.toCache(path, l)
	return l, true
}

func (s *FileScanner) lastLine(ctx context.Context, path string) (line, bool) {
	f, err := os.Open(path)
	if err != nil {
		return line{}, false
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		s.quarantine(ctx, path, err)
		return line{}, false
	}
	defer gz.Close()
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	var lastBytes []byte
	for sc.Scan() {
		lastBytes = append(lastBytes[:0], sc.Bytes()...)
	}
	if len(lastBytes) == 0 {
		return line{}, false
	}
	var l line
	if err := json.Unmarshal(lastBytes, &l); err != nil {
		s.quarantine(ctx, path, err)
		return line{}, false
	}
	return l, true
}

// fromCache returns the full cached line verbatim, keyed by (path, mtime) —
// caching the derived Meta fields rather than the whole line previously
// dropped every attribute metaFor didn't happen to read into Meta yet,
// silently losing engine/title/status on a cache hit. Caching the line
// itself keeps a hit indistinguishable from a fresh parse.
func (s *FileScanner) fromCache(path string) (line, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return line{}, false
	}
	cached, ok := s.cache.Get(path)
	if !ok || cached.mtime != fi.ModTime().UnixNano() {
		return line{}, false
	}
	return cached.line, true
}

func (s *FileScanner) toCache(path string, l line) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	s.cache.Add(path, cachedMeta{mtime: fi.ModTime().UnixNano(), line: l})
}

// quarantine logs a corrupt trace file and renames it to "{name}.bad",
// matching spec.md's CorruptTrace handling: a single WARN log, skipped in
// the listing, file renamed so it does not keep failing future scans.
func (s *FileScanner) quarantine(ctx context.Context, path string, cause error) {
	s.logger.Warn(ctx, "corrupt trace file, quarantining", "path", path, "err", cause.Error())
	_ = os.Rename(path, path+".bad")
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
