package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"mathbattle/internal/domain"
	"mathbattle/internal/transport"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.Event
	errs   []error
	closed int
}

func (h *recordingHandler) HandleEvent(event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) HandleError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHandler) HandleClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
}

func (h *recordingHandler) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *recordingHandler) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *recordingHandler) waitEvents(t *testing.T, n int) []domain.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for h.eventCount() < n {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", n, h.eventCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Event, len(h.events))
	copy(out, h.events)
	return out
}

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// gameServer upgrades /game connections and hands the raw conn plus request
// to the test.
func gameServer(t *testing.T, serve func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(r, conn)
	})
	return httptest.NewServer(mux)
}

func wsBase(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnectSendsIdentityParams(t *testing.T) {
	gotQuery := make(chan map[string]string, 1)
	server := gameServer(t, func(r *http.Request, conn *websocket.Conn) {
		q := r.URL.Query()
		gotQuery <- map[string]string{"code": q.Get("code"), "user": q.Get("user"), "device": q.Get("device")}
		// Hold the conn open until the client walks away.
		conn.ReadMessage()
	})
	defer server.Close()

	session, err := NewSession(wsBase(server), "YEST", transport.PlayerIdentity("Alice"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.SetHandler(&recordingHandler{})
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	select {
	case q := <-gotQuery:
		if q["code"] != "YEST" || q["user"] != "Alice" || q["device"] != "" {
			t.Fatalf("unexpected query params: %v", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the connection")
	}
}

func TestReceiveLoopDecodesEventsAndDropsGarbage(t *testing.T) {
	server := gameServer(t, func(r *http.Request, conn *websocket.Conn) {
		// Malformed frame first: it must be dropped silently.
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":"Alice","players":[{"name":"Alice","score":0}]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat","data":"","players":[{"name":"Alice","score":1}]}`))
		conn.ReadMessage()
	})
	defer server.Close()

	handler := &recordingHandler{}
	session, err := NewSession(wsBase(server), "YEST", transport.PlayerIdentity("Alice"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.SetHandler(handler)
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	events := handler.waitEvents(t, 2)
	if events[0].Type != domain.EventJoin || events[1].Type != domain.EventHeartbeat {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].Players[0].Score != 1 {
		t.Fatalf("second event decoded wrong: %+v", events[1])
	}
	// The malformed frame surfaced no error.
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errs) != 0 {
		t.Fatalf("decode failures must not surface errors, got %v", handler.errs)
	}
}

func TestSendAnswerWritesWireFormat(t *testing.T) {
	frames := make(chan []byte, 2)
	server := gameServer(t, func(r *http.Request, conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- data
		}
	})
	defer server.Close()

	session, err := NewSession(wsBase(server), "YEST", transport.PlayerIdentity("Alice"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.SetHandler(&recordingHandler{})
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if err := session.SendAnswer("20"); err != nil {
		t.Fatalf("send answer: %v", err)
	}
	if err := session.ResetGame(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	var answer, reset struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	select {
	case frame := <-frames:
		if err := json.Unmarshal(frame, &answer); err != nil {
			t.Fatalf("decode answer frame: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no answer frame arrived")
	}
	select {
	case frame := <-frames:
		if err := json.Unmarshal(frame, &reset); err != nil {
			t.Fatalf("decode reset frame: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no reset frame arrived")
	}
	if answer.Type != "answer" || answer.Data != "20" {
		t.Fatalf(`expected {"type":"answer","data":"20"}, got %+v`, answer)
	}
	if reset.Type != "reset" || reset.Data != "" {
		t.Fatalf(`expected {"type":"reset","data":""}, got %+v`, reset)
	}
}

func TestServerCloseSignalsHandler(t *testing.T) {
	server := gameServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":"","players":[]}`))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	})
	defer server.Close()

	handler := &recordingHandler{}
	session, err := NewSession(wsBase(server), "YEST", transport.PlayerIdentity("Alice"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.SetHandler(handler)
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	deadline := time.After(2 * time.Second)
	for handler.closedCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("handler never saw the close")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSendBeforeConnectFails(t *testing.T) {
	session, err := NewSession("ws://127.0.0.1:0", "YEST", transport.PlayerIdentity("Alice"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.SetHandler(&recordingHandler{})
	if err := session.SendAnswer("20"); err != domain.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
