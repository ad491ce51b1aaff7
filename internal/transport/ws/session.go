package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"mathbattle/internal/domain"
	"mathbattle/internal/transport"
)

// outbound is the client-to-server frame. Only answer and reset ever go out.
type outbound struct {
	Type domain.EventType `json:"type"`
	Data string           `json:"data"`
}

// Session is the live transport: one websocket to {host}/game per room
// membership. It is a pure framing layer: it holds no game state and never
// looks inside event payloads. Reconnection after a close is the handler's
// responsibility, not the session's.
type Session struct {
	url     string
	handler transport.Handler

	mu   sync.Mutex // guards conn writes and replacement
	conn *websocket.Conn
}

// NewSession builds a session for one room membership. baseURL is the ws://
// or wss:// endpoint without a path.
func NewSession(baseURL, roomCode string, identity transport.Identity) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse game endpoint: %w", err)
	}
	u.Path = "/game"
	q := u.Query()
	q.Set("code", roomCode)
	identity.SetQuery(q)
	u.RawQuery = q.Encode()
	return &Session{url: u.String()}, nil
}

// SetHandler registers the event sink. Call once, before Connect.
func (s *Session) SetHandler(h transport.Handler) { s.handler = h }

// Connect dials the game endpoint and starts the receive loop.
func (s *Session) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.receiveLoop(conn)
	return nil
}

// receiveLoop reads frames until the connection dies. Malformed frames are
// dropped without surfacing an error; the server re-broadcasts full state on
// every event, so a lost frame heals itself.
func (s *Session) receiveLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Any read error on a gorilla conn is terminal.
			s.handler.HandleError(err)
			s.handler.HandleClosed()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		s.handler.HandleEvent(event)
	}
}

// SendAnswer transmits a single answer frame. A failed send is logged and
// lost; the next broadcast resynchronizes.
func (s *Session) SendAnswer(answer string) error {
	return s.send(outbound{Type: domain.EventAnswer, Data: answer})
}

// ResetGame asks the server to clear the round.
func (s *Session) ResetGame() error {
	return s.send(outbound{Type: domain.EventReset, Data: ""})
}

func (s *Session) send(msg outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return domain.ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Type, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("ws send %s failed: %v", msg.Type, err)
		return err
	}
	return nil
}

// Close tears down the connection. The receive loop notices and signals the
// handler.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
