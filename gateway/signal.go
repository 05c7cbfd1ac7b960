package gateway

import (
	"encoding/json"
	"net/http"
)

var validSignals = map[string]bool{
	"human_input_answer": true,
	"pause":              true,
	"resume":             true,
}

type signalRequest struct {
	Signal  string `json:"signal"`
	Payload any    `json:"payload,omitempty"`
}

func (g *Gateway) handleSignal(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
		return
	}
	if g.signalLim != nil && !g.signalLim.Allow() {
		writeError(w, http.StatusTooManyRequests, kindValidation, "rate limit exceeded")
		return
	}
	if g.cfg.Dispatcher == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "unknown session")
		return
	}

	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}
	if !validSignals[req.Signal] {
		writeError(w, http.StatusBadRequest, kindValidation, "unknown signal")
		return
	}

	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	if g.cfg.Validator != nil {
		if err := g.cfg.Validator.Validate(ctx, sessionID, req.Payload); err != nil {
			writeError(w, http.StatusBadRequest, kindValidation, err.Error())
			return
		}
	}

	if err := g.cfg.Dispatcher.Signal(ctx, sessionID, req.Signal, req.Payload); err != nil {
		writeError(w, http.StatusNotFound, kindNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (g *Gateway) handleCancel(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
		return
	}
	if g.signalLim != nil && !g.signalLim.Allow() {
		writeError(w, http.StatusTooManyRequests, kindValidation, "rate limit exceeded")
		return
	}
	if g.cfg.Dispatcher == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "unknown session")
		return
	}

	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := g.cfg.Dispatcher.Cancel(ctx, sessionID); err != nil {
		writeError(w, http.StatusNotFound, kindNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}
