package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mcp-agent-inspector/inspector/tracestream"
)

func (g *Gateway) handleTrace(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
		return
	}
	if g.cfg.Traces == nil {
		writeError(w, http.StatusNotFound, kindNotFound, "trace storage not configured")
		return
	}

	file, err := g.cfg.Traces.Resolve(sessionID)
	if err != nil {
		if errors.Is(err, tracestream.ErrNotFound) {
			writeError(w, http.StatusNotFound, kindNotFound, "trace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, kindValidation, err.Error())
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/x-jsonlines+gzip")
		w.Header().Set("ETag", file.ETag())
		w.WriteHeader(http.StatusOK)
		if err := file.WriteFull(w); err != nil {
			g.logger.Warn(r.Context(), "trace stream write failed", "session_id", sessionID, "err", err.Error())
		}
		return
	}

	start, end, ok := parseRange(rangeHeader)
	if !ok {
		writeError(w, http.StatusRequestedRangeNotSatisfiable, kindValidation, "invalid range")
		return
	}
	size, err := file.DecompressedSize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, kindValidation, err.Error())
		return
	}
	if end < 0 || end >= size {
		end = size - 1
	}
	if start < 0 || start >= size || start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, kindValidation, "range not satisfiable")
		return
	}

	w.Header().Set("Content-Type", "application/x-jsonlines")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("ETag", file.ETag())
	w.WriteHeader(http.StatusPartialContent)
	if err := file.WriteRange(w, start, end); err != nil {
		g.logger.Warn(r.Context(), "trace range write failed", "session_id", sessionID, "err", err.Error())
	}
}

// parseRange parses a single "bytes=a-b" Range header value. A missing end
// is treated as "to end of stream" by returning end = -1.
func parseRange(header string) (start, end int64, ok bool) {
	const p = "bytes="
	if !strings.HasPrefix(header, p) {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, p)
	if strings.Contains(spec, ",") {
		return 0, 0, false // multi-range unsupported
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || a < 0 {
		return 0, 0, false
	}
	if parts[1] == "" {
		return a, -1, true
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || b < a {
		return 0, 0, false
	}
	return a, b, true
}
