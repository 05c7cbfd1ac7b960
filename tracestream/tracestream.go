// Package tracestream implements C8: serving a session's gzipped trace file
// either whole or as a byte-ranged slice of its decompressed content. It is
// grounded on export's writer/rotation file layout (the same
// {id}.jsonl.gz / {id}_chunk_{n}.jsonl.gz names) and reimplements the
// teacher's general preference for small, single-purpose io helpers rather
// than a framework-level streaming abstraction — there is no streaming
// counterpart in the teacher repo to adapt, so this package is grounded on
// export's own file-naming and klauspost/compress/gzip usage instead.
package tracestream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrNotFound is returned when no trace file exists for a session-id.
var ErrNotFound = errors.New("tracestream: trace not found")

// ErrInvalidRange is returned for a Range header tracestream cannot satisfy.
var ErrInvalidRange = errors.New("tracestream: invalid range")

const chunkSize = 1 << 20 // 1 MiB, per spec.md's "stream in 1 MiB chunks"

var chunkPattern = regexp.MustCompile(`^([A-Za-z0-9_-]{6,}?)(?:_chunk_(\d+))?\.jsonl\.gz$`)

// Service resolves and serves trace files for a traces directory.
type Service struct {
	dir string
}

// New constructs a Service rooted at dir.
func New(dir string) *Service {
	return &Service{dir: dir}
}

// File describes a resolved, concatenation-ordered set of chunk files
// backing one session's trace, along with the metadata needed to compute an
// ETag. The decompressed length is not stored; DecompressedSize computes it.
type File struct {
	SessionID string
	Chunks    []string // absolute paths, in emission order
	Size      int64    // total size of the gzip files on disk, bytes
	ModTime   int64    // most recent chunk's mtime, unix nanoseconds
}

// ETag implements spec.md's `ETag = "<size>-<mtime-ns>"`.
func (f File) ETag() string {
	return fmt.Sprintf(`"%d-%d"`, f.Size, f.ModTime)
}

// Resolve locates every chunk file for sessionID, sorted in emission order.
// Symlinks are resolved and rejected if they escape dir, and any path
// containing "..": Resolve returns ErrNotFound rather than leaking whether
// a traversal target exists, consistent with the "404 not 403" contract.
func (s *Service) Resolve(sessionID string) (File, error) {
	if strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, `/\`) {
		return File{}, ErrNotFound
	}
	root, err := filepath.EvalSymlinks(s.dir)
	if err != nil {
		return File{}, ErrNotFound
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return File{}, ErrNotFound
	}

	type chunk struct {
		path string
		n    int
	}
	var chunks []chunk
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkPattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != sessionID {
			continue
		}
		n := 0
		if m[2] != "" {
			n, _ = strconv.Atoi(m[2])
		}
		full := filepath.Join(root, e.Name())
		resolved, err := filepath.EvalSymlinks(full)
		if err != nil || !strings.HasPrefix(resolved, root) {
			continue
		}
		chunks = append(chunks, chunk{path: resolved, n: n})
	}
	if len(chunks) == 0 {
		return File{}, ErrNotFound
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].n < chunks[j].n })

	out := File{SessionID: sessionID}
	var latestMod int64
	for _, c := range chunks {
		fi, err := os.Stat(c.path)
		if err != nil {
			return File{}, ErrNotFound
		}
		out.Chunks = append(out.Chunks, c.path)
		out.Size += fi.Size()
		if mt := fi.ModTime().UnixNano(); mt > latestMod {
			latestMod = mt
		}
	}
	out.ModTime = latestMod
	return out, nil
}

// WriteFull streams every chunk's raw gzip bytes to w in chunkSize pieces,
// in order, with no decompression — the "no Range header" path.
func (f File) WriteFull(w io.Writer) error {
	for _, path := range f.Chunks {
		if err := copyFile(w, path); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	buf := make([]byte, chunkSize)
	_, err = io.CopyBuffer(w, in, buf)
	return err
}

// WriteRange decompresses every chunk in order, discards the first `start`
// decompressed bytes, and writes exactly `end-start+1` bytes to w — the
// Range path. start and end are inclusive decompressed-byte offsets,
// already validated against the decompressed size by the caller.
func (f File) WriteRange(w io.Writer, start, end int64) error {
	remainingSkip := start
	remainingWrite := end - start + 1

	for _, path := range f.Chunks {
		if remainingWrite <= 0 {
			return nil
		}
		n, err := streamChunk(w, path, &remainingSkip, &remainingWrite)
		if err != nil {
			return err
		}
		_ = n
	}
	return nil
}

func streamChunk(w io.Writer, path string, skip, write *int64) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	gz, err := gzip.NewReader(bufio.NewReaderSize(in, 64*1024))
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, err := gz.Read(buf)
		if n > 0 {
			data := buf[:n]
			if *skip > 0 {
				if int64(len(data)) <= *skip {
					*skip -= int64(len(data))
					data = nil
				} else {
					data = data[*skip:]
					*skip = 0
				}
			}
			if len(data) > 0 {
				if int64(len(data)) > *write {
					data = data[:*write]
				}
				if _, werr := w.Write(data); werr != nil {
					return written, werr
				}
				written += int64(len(data))
				*write -= int64(len(data))
				if *write <= 0 {
					return written, nil
				}
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// DecompressedSize decompresses every chunk to compute the total
// decompressed byte count, needed to validate a Range request against the
// actual content length. This reads the whole file once; callers on the hot
// 416-check path should cache the result per request only, not across
// requests, since trace files grow over a session's lifetime.
func (f File) DecompressedSize() (int64, error) {
	var total int64
	for _, path := range f.Chunks {
		in, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		gz, err := gzip.NewReader(in)
		if err != nil {
			in.Close()
			return 0, err
		}
		n, err := io.Copy(io.Discard, gz)
		gz.Close()
		in.Close()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
