package tracestream_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/tracestream"
)

func writeGzipFile(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gz := gzip.NewWriter(f)
	_, err = gz.Write(content)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}

func repeatedLines(n int, lineLen int) []byte {
	var buf bytes.Buffer
	line := bytes.Repeat([]byte("a"), lineLen-1)
	for i := 0; i < n; i++ {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func TestResolveFindsSingleChunk(t *testing.T) {
	dir := t.TempDir()
	content := repeatedLines(10, 100)
	writeGzipFile(t, filepath.Join(dir, "session-aaaaaa.jsonl.gz"), content)

	svc := tracestream.New(dir)
	f, err := svc.Resolve("session-aaaaaa")
	require.NoError(t, err)
	assert.Len(t, f.Chunks, 1)
	assert.NotEmpty(t, f.ETag())
}

func TestResolveOrdersChunksByNumber(t *testing.T) {
	dir := t.TempDir()
	writeGzipFile(t, filepath.Join(dir, "session-bbbbbb.jsonl.gz"), []byte("first\n"))
	writeGzipFile(t, filepath.Join(dir, "session-bbbbbb_chunk_1.jsonl.gz"), []byte("second\n"))

	svc := tracestream.New(dir)
	f, err := svc.Resolve("session-bbbbbb")
	require.NoError(t, err)
	require.Len(t, f.Chunks, 2)
	assert.Contains(t, f.Chunks[0], "session-bbbbbb.jsonl.gz")
	assert.Contains(t, f.Chunks[1], "session-bbbbbb_chunk_1.jsonl.gz")
}

func TestResolveRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	svc := tracestream.New(dir)
	_, err := svc.Resolve("../../etc/passwd")
	assert.ErrorIs(t, err, tracestream.ErrNotFound)
}

func TestResolveUnknownSessionReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	svc := tracestream.New(dir)
	_, err := svc.Resolve("session-unknown")
	assert.ErrorIs(t, err, tracestream.ErrNotFound)
}

func TestWriteFullStreamsRawGzipBytes(t *testing.T) {
	dir := t.TempDir()
	content := repeatedLines(10, 100)
	path := filepath.Join(dir, "session-cccccc.jsonl.gz")
	writeGzipFile(t, path, content)

	svc := tracestream.New(dir)
	f, err := svc.Resolve("session-cccccc")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, f.WriteFull(&out))

	gz, err := gzip.NewReader(&out)
	require.NoError(t, err)
	var decompressed bytes.Buffer
	_, err = decompressed.ReadFrom(gz)
	require.NoError(t, err)
	assert.Equal(t, content, decompressed.Bytes())
}

func TestWriteRangeReturnsExactSlice(t *testing.T) {
	dir := t.TempDir()
	content := repeatedLines(10, 100) // 1000 bytes
	path := filepath.Join(dir, "session-dddddd.jsonl.gz")
	writeGzipFile(t, path, content)

	svc := tracestream.New(dir)
	f, err := svc.Resolve("session-dddddd")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, f.WriteRange(&out, 200, 399))
	assert.Equal(t, content[200:400], out.Bytes())
}

func TestDecompressedSizeMatchesOriginal(t *testing.T) {
	dir := t.TempDir()
	content := repeatedLines(10, 101) // 1010 bytes, matches spec.md's example
	path := filepath.Join(dir, "session-eeeeee.jsonl.gz")
	writeGzipFile(t, path, content)

	svc := tracestream.New(dir)
	f, err := svc.Resolve("session-eeeeee")
	require.NoError(t, err)

	size, err := f.DecompressedSize()
	require.NoError(t, err)
	assert.EqualValues(t, len(content), size)
}
