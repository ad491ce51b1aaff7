package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoreStore keeps per-room scores in a Redis hash so scores survive a
// process restart and can be shared across server instances. Keys expire
// after ttl of inactivity.
type ScoreStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreStore(client *redis.Client, ttl time.Duration) *ScoreStore {
	return &ScoreStore{client: client, ttl: ttl}
}

func (s *ScoreStore) Score(ctx context.Context, roomCode, player string) (int, error) {
	score, err := s.client.HGet(ctx, s.key(roomCode), player).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

func (s *ScoreStore) SetScore(ctx context.Context, roomCode, player string, score int) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.key(roomCode), player, score)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(roomCode), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

func (s *ScoreStore) ClearRoom(ctx context.Context, roomCode string) error {
	if err := s.client.Del(ctx, s.key(roomCode)).Err(); err != nil {
		return fmt.Errorf("clear room scores: %w", err)
	}
	return nil
}

func (s *ScoreStore) key(roomCode string) string {
	return "room:" + roomCode + ":scores"
}
