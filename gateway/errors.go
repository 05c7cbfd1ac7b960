package gateway

import (
	"encoding/json"
	"net/http"
)

// errorKind enumerates spec.md §7's error taxonomy kinds that surface
// directly to an HTTP caller as a structured body. Kinds that never reach a
// request (SubscriberFailure, ClientDisconnect, StorageFull, CorruptTrace,
// LockHeld) are handled internally by hooks/export/session and do not
// appear here.
type errorKind string

const (
	kindValidation errorKind = "ValidationError"
	kindNotFound   errorKind = "NotFound"
)

// apiError is the `{error:{kind,message}}` JSON body spec.md §7 requires.
type apiError struct {
	Kind    errorKind `json:"kind"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind errorKind, message string) {
	writeJSON(w, status, struct {
		Error apiError `json:"error"`
	}{Error: apiError{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
