package gateway

import (
	"net/http"

	"github.com/mcp-agent-inspector/inspector/eventbus"
)

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
		return
	}
	if g.eventsLim != nil && !g.eventsLim.Allow() {
		writeError(w, http.StatusTooManyRequests, kindValidation, "too many connection attempts")
		return
	}
	if g.cfg.Bus == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "event stream not configured")
		return
	}
	g.cfg.Bus.ServeSSE(w, r, eventbus.ServeHTTPOptions{Logger: g.logger})
}
