package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/session"
	"github.com/mcp-agent-inspector/inspector/session/inmem"
)

type fakeQuerier struct {
	sessions []session.Meta
	err      error
}

func (f fakeQuerier) Query(context.Context) ([]session.Meta, error) {
	return f.sessions, f.err
}

func TestListSortsLiveSessionsDescending(t *testing.T) {
	store := inmem.New()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	_, err := store.Create(context.Background(), "session-aaaaaa", session.EngineLocal, "older", older)
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "session-bbbbbb", session.EngineLocal, "newer", newer)
	require.NoError(t, err)

	reg := &session.Registry{Live: store}
	result, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)
	assert.Equal(t, "session-bbbbbb", result.Sessions[0].ID)
	assert.Equal(t, "session-aaaaaa", result.Sessions[1].ID)
	assert.Empty(t, result.Warning)
}

func TestListSurvivesExternalQueryFailureWithWarning(t *testing.T) {
	store := inmem.New()
	_, err := store.Create(context.Background(), "session-local1", session.EngineLocal, "", time.Now())
	require.NoError(t, err)

	reg := &session.Registry{
		Live:    store,
		Querier: fakeQuerier{err: errors.New("temporal unreachable")},
	}
	result, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, "temporal unreachable", result.Warning)
}

func TestListAddsExternalSessionsOnSuccess(t *testing.T) {
	store := inmem.New()
	_, err := store.Create(context.Background(), "session-local2", session.EngineLocal, "", time.Now())
	require.NoError(t, err)

	reg := &session.Registry{
		Live: store,
		Querier: fakeQuerier{sessions: []session.Meta{
			{ID: "session-remote1", Engine: session.EngineExternalWorkflow, Status: session.StatusRunning, StartedAt: time.Now()},
		}},
	}
	result, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Sessions, 2)
	assert.Empty(t, result.Warning)
}
