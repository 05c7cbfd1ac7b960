package export_test

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/export"
	"github.com/mcp-agent-inspector/inspector/rtctx"
	"github.com/mcp-agent-inspector/inspector/telemetry"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var out []map[string]any
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestExportWritesOneLinePerSpanGroupedBySession(t *testing.T) {
	dir := t.TempDir()
	exp, err := export.New(export.Config{TracesDir: dir})
	require.NoError(t, err)

	provider := telemetry.NewProvider(exp)
	tracer := telemetry.NewTracer(provider.Tracer("test"))
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	ctx := rtctx.Set(context.Background(), "session-abcdef")
	ctx, span := tracer.Start(ctx, "tool-call")
	require.NoError(t, sub.HandleEvent(ctx, "tool-call.before", map[string]any{"tool-name": "search"}))
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))

	lines := readLines(t, filepath.Join(dir, "session-abcdef.jsonl.gz"))
	require.Len(t, lines, 1)
	assert.Equal(t, "tool-call", lines[0]["name"])
}

func TestExportGroupsUnknownSessionSeparately(t *testing.T) {
	dir := t.TempDir()
	exp, err := export.New(export.Config{TracesDir: dir})
	require.NoError(t, err)

	provider := telemetry.NewProvider(exp)
	tracer := telemetry.NewTracer(provider.Tracer("test"))

	_, span := tracer.Start(context.Background(), "untracked-op")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	lines := readLines(t, filepath.Join(dir, "unknown.jsonl.gz"))
	require.Len(t, lines, 1)
}

func TestRotationOpensChunkFileOnceThresholdCrossed(t *testing.T) {
	dir := t.TempDir()
	exp, err := export.New(export.Config{TracesDir: dir, RotateBytes: 200})
	require.NoError(t, err)

	provider := telemetry.NewProvider(exp)
	tracer := telemetry.NewTracer(provider.Tracer("test"))

	ctx := rtctx.Set(context.Background(), "session-rotate1")
	for i := 0; i < 20; i++ {
		spanCtx, span := tracer.Start(ctx, "step")
		span.SetAttribute("session.id", rtctx.Get(spanCtx))
		span.End()
	}
	require.NoError(t, provider.Shutdown(context.Background()))

	_, err = os.Stat(filepath.Join(dir, "session-rotate1.jsonl.gz"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "session-rotate1_chunk_1.jsonl.gz"))
	assert.NoError(t, err, "expected a rotated chunk file once the byte threshold was crossed")
}

func TestSecondExporterOnSameDirIsDisabled(t *testing.T) {
	dir := t.TempDir()
	first, err := export.New(export.Config{TracesDir: dir})
	require.NoError(t, err)
	defer first.Shutdown(context.Background())

	var notices []export.NoticeKind
	second, err := export.New(export.Config{TracesDir: dir, OnNotice: func(kind export.NoticeKind, _ string) {
		notices = append(notices, kind)
	}})
	require.NoError(t, err)

	// A disabled exporter drops spans silently rather than erroring.
	err = second.ExportSpans(context.Background(), nil)
	assert.NoError(t, err)
	assert.Contains(t, notices, export.NoticeExporterDisabled)
}
