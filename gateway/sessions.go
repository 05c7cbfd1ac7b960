package gateway

import (
	"net/http"
	"time"

	"github.com/mcp-agent-inspector/inspector/session"
)

// requestTimeout is spec.md §5's "30s hard timeout on non-streaming
// endpoints".
const requestTimeout = 30 * time.Second

func (g *Gateway) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
		return
	}
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	if g.cfg.Registry == nil {
		writeJSON(w, http.StatusOK, struct {
			Sessions []any `json:"sessions"`
		}{Sessions: []any{}})
		return
	}

	result, err := g.cfg.Registry.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindValidation, err.Error())
		return
	}

	sessions := result.Sessions
	if sessions == nil {
		sessions = []session.Meta{}
	}
	resp := struct {
		Sessions      []session.Meta `json:"sessions"`
		TemporalError string         `json:"temporal_error,omitempty"`
	}{Sessions: sessions, TemporalError: result.Warning}
	writeJSON(w, http.StatusOK, resp)
}
