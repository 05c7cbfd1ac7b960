package rtctx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/rtctx"
)

func TestGetUnknownByDefault(t *testing.T) {
	assert.Equal(t, rtctx.Unknown, rtctx.Get(context.Background()))
	assert.Equal(t, rtctx.Unknown, rtctx.Get(nil)) //nolint:staticcheck // explicit nil-safety check
}

func TestSetThenGet(t *testing.T) {
	ctx := rtctx.Set(context.Background(), "sess-abcdef")
	assert.Equal(t, "sess-abcdef", rtctx.Get(ctx))
}

func TestConcurrentTasksObserveOwnValue(t *testing.T) {
	root := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := "session-" + string(rune('a'+i%26))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := rtctx.Set(root, id)
			require.Equal(t, id, rtctx.Get(ctx))
		}(id)
	}
	wg.Wait()
}

func TestBoundCapturesSnapshotAtSpawn(t *testing.T) {
	parent := rtctx.Set(context.Background(), "session-xyz123")

	var observed string
	spawn := rtctx.Bound(parent, func(ctx context.Context) {
		observed = rtctx.Get(ctx)
	})

	// Rebinding the parent afterward must not affect the already-bound snapshot.
	_ = rtctx.Set(parent, "session-mutated")

	spawn(context.Background())
	assert.Equal(t, "session-xyz123", observed)
}
