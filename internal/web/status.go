package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leandrotocalini/boardroom/internal/logging"
)

type logJSON struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func toLogJSON(e logging.Entry) logJSON {
	return logJSON{
		Time:    e.Time.Format("15:04:05"),
		Level:   e.Level.String(),
		Message: e.Message,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"provider": s.provider,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	}
	for _, fn := range s.status {
		for k, v := range fn() {
			status[k] = v
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logJSON{})
		return
	}
	entries := s.logs.Entries()
	out := make([]logJSON, len(entries))
	for i, e := range entries {
		out[i] = toLogJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLogsStream sends logs as SSE (Server-Sent Events).
func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "log stream disabled", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.logs.Subscribe()
	defer s.logs.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-ch:
			data, _ := json.Marshal(toLogJSON(entry))
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
