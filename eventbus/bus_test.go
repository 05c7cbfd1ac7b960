package eventbus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/eventbus"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := eventbus.New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := bus.Subscribe(ctx, 0)
	sub2 := bus.Subscribe(ctx, 0)
	defer sub1.Close()
	defer sub2.Close()

	bus.Publish("session.started", "sess-1", map[string]any{"engine": "local"})

	for _, sub := range []*eventbus.Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, "session.started", ev.Name)
			assert.Equal(t, "sess-1", ev.SessionID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscribeReplaysEventsAfterLastEventID(t *testing.T) {
	bus := eventbus.New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := bus.Publish("a", "", nil)
	second := bus.Publish("b", "", nil)
	bus.Publish("c", "", nil)

	sub := bus.Subscribe(ctx, first.ID)
	defer sub.Close()

	ev := <-sub.Events
	assert.Equal(t, second.ID, ev.ID)
	ev = <-sub.Events
	assert.Equal(t, "c", ev.Name)
}

func TestSlowSubscriberIsDroppedOnOverflow(t *testing.T) {
	bus := eventbus.New(10, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := bus.Subscribe(ctx, 0)
	for i := 0; i < 10; i++ {
		bus.Publish("x", "", nil)
	}

	// The two events buffered before the overflow are still delivered;
	// the close is observed only after they are drained.
	<-sub.Events
	<-sub.Events
	_, ok := <-sub.Events
	require.False(t, ok, "subscriber channel should have been closed after overflow")
}

func TestServeSSEWritesFramedEventsAndHonorsLastEventID(t *testing.T) {
	bus := eventbus.New(0, 0)
	first := bus.Publish("session.started", "sess-1", map[string]any{"ok": true})
	second := bus.Publish("session.started", "sess-2", map[string]any{"ok": true})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Last-Event-ID", itoa(first.ID))
	ctx, cancel := context.WithTimeout(req.Context(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	bus.ServeSSE(rec, req, eventbus.ServeHTTPOptions{Heartbeat: time.Hour})

	body := rec.Body.String()
	assert.Contains(t, body, "retry: 2000")
	assert.Contains(t, body, "id: "+itoa(second.ID))
	assert.NotContains(t, body, "id: "+itoa(first.ID)+"\n")
	assert.True(t, strings.Contains(body, "event: message"))
	assert.True(t, strings.Contains(body, `"name":"session.started"`))
}

func itoa(id uint64) string {
	if id == 0 {
		return "0"
	}
	digits := []byte{}
	for id > 0 {
		digits = append([]byte{byte('0' + id%10)}, digits...)
		id /= 10
	}
	return string(digits)
}
