package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"mathbattle/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inbound is the client-to-server frame: answers and resets only.
type inbound struct {
	Type domain.EventType `json:"type"`
	Data string           `json:"data"`
}

// handleGame upgrades the request and pumps events between the socket and
// its room. Named players arrive with user= (or the legacy username=);
// host/TV clients with device=.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("user")
	if name == "" {
		name = r.URL.Query().Get("username")
	}
	device := r.URL.Query().Get("device")
	if name == "" && device == "" {
		http.Error(w, "missing user or device", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	room := s.getOrCreateRoom(code)
	m := &member{name: name, send: make(chan domain.Event, 16)}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for event := range m.send {
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	room.Join(r.Context(), m)
	defer func() {
		room.Leave(m)
		s.dropIfEmpty(code)
		close(m.send)
		<-writerDone
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames are dropped, not fatal.
			continue
		}
		switch msg.Type {
		case domain.EventAnswer:
			if name != "" {
				room.Answer(r.Context(), name, msg.Data)
			}
		case domain.EventReset:
			room.Reset(name)
		}
	}
}
