package httpapi

import (
	"encoding/json"
	"net/http"
)

// streamDisplay sends every display change as a server-sent event, starting
// with the current panel.
func (s *Server) streamDisplay(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	panels, cancel := s.panels.Subscribe()
	defer cancel()

	for {
		select {
		case panel, ok := <-panels:
			if !ok {
				return
			}

			data, _ := json.Marshal(panel)
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))

			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
