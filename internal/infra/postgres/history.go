package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"mathbattle/internal/domain"
	"mathbattle/internal/server"
)

// History stores solved questions in Postgres. It implements
// server.HistoryRecorder and offers a read path for inspecting past rounds.
type History struct {
	pool *pgxpool.Pool
}

func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

func (h *History) RecordAnswer(ctx context.Context, record server.AnswerRecord) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO battle_history (room_code, player_name, lhs, rhs, answer, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RoomCode, record.PlayerName, record.Question.LHS, record.Question.RHS,
		record.Question.CorrectAnswer, record.AnsweredAt)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// RecentForRoom returns the most recent solved questions for a room, newest
// first.
func (h *History) RecentForRoom(ctx context.Context, roomCode string, limit int) ([]server.AnswerRecord, error) {
	rows, err := h.pool.Query(ctx,
		`SELECT room_code, player_name, lhs, rhs, answer, answered_at
		 FROM battle_history WHERE room_code=$1
		 ORDER BY answered_at DESC LIMIT $2`, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var records []server.AnswerRecord
	for rows.Next() {
		var rec server.AnswerRecord
		var q domain.Question
		if err := rows.Scan(&rec.RoomCode, &rec.PlayerName, &q.LHS, &q.RHS, &q.CorrectAnswer, &rec.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Question = q
		records = append(records, rec)
	}
	return records, rows.Err()
}
