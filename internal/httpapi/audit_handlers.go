package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"taskdesk.org/internal/audit"
)

// streamKeepAlive is the interval between SSE comment frames.
const streamKeepAlive = 25 * time.Second

func (a *API) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := a.audits.List(r.Context(), audit.Filter{
		UserID:   q.Get("userId"),
		Resource: q.Get("resource"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// streamAuditLogs pushes newly persisted audit rows as Server-Sent Events.
func (a *API) streamAuditLogs(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.feed.Subscribe(r.Context())

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case entry, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: audit\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		}
	}
}
