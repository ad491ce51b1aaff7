package memory

import (
	"context"
	"sync"
)

// ScoreStore is the in-memory implementation of server.ScoreStore.
type ScoreStore struct {
	mu     sync.RWMutex
	scores map[string]map[string]int
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{scores: make(map[string]map[string]int)}
}

func (s *ScoreStore) Score(_ context.Context, roomCode, player string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[roomCode][player], nil
}

func (s *ScoreStore) SetScore(_ context.Context, roomCode, player string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.scores[roomCode]
	if !ok {
		room = make(map[string]int)
		s.scores[roomCode] = room
	}
	room[player] = score
	return nil
}

func (s *ScoreStore) ClearRoom(_ context.Context, roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, roomCode)
	return nil
}
