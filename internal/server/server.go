package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"

	"mathbattle/internal/domain"
)

// Server is the practice game server: it provisions room codes and relays
// game events between everyone connected to a room. It exists so the client
// is playable and testable without the hosted production server.
type Server struct {
	mode    domain.BattleMode
	maxTime int
	scores  ScoreStore
	history HistoryRecorder

	mu    sync.Mutex
	rooms map[string]*Room
}

// New wires a server. history may be nil to disable match history.
func New(scores ScoreStore, history HistoryRecorder, mode domain.BattleMode, maxTime int) *Server {
	return &Server{
		mode:    mode,
		maxTime: maxTime,
		scores:  scores,
		history: history,
		rooms:   make(map[string]*Room),
	}
}

// Routes builds the HTTP surface: health, provisioning, and the game socket.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/new_game", s.handleNewGame)
	mux.HandleFunc("/game", s.handleGame)
	return mux
}

// handleNewGame mints a fresh four-letter room code and creates its room.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	code := s.freshCode()
	s.getOrCreateRoom(code)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code})
}

func (s *Server) freshCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		code := randomCode(4)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

func (s *Server) getOrCreateRoom(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room
	}
	room := newRoom(code, s.mode, s.maxTime, s.scores, s.history)
	s.rooms[code] = room
	return room
}

// dropIfEmpty tears a room down once its last socket is gone.
func (s *Server) dropIfEmpty(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok || !room.IsEmpty() {
		return
	}
	room.stop()
	delete(s.rooms, code)
}

func randomCode(length int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, length)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
