package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 200 * time.Millisecond

// upgrader accepts any origin unless allowed origins were configured.
// Requests without an Origin header are not from a browser and pass.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(s.origins) == 0 || origin == "" {
				return true
			}
			return slices.Contains(s.origins, origin)
		},
	}
}

// serveWS pushes every display change to a WebSocket client as a JSON text
// frame. Anything the client sends is discarded.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	panels, cancel := s.panels.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case panel, ok := <-panels:
			if !ok {
				return
			}
			data, err := json.Marshal(panel)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			return
		}
	}
}
