package server

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"mathbattle/internal/domain"
)

// AnswerRecord captures one correctly solved question, for the optional
// match-history store.
type AnswerRecord struct {
	RoomCode   string
	PlayerName string
	Question   domain.Question
	AnsweredAt time.Time
}

// ScoreStore persists per-room scores so a player keeps their tally across a
// dropped and re-established connection.
type ScoreStore interface {
	Score(ctx context.Context, roomCode, player string) (int, error)
	SetScore(ctx context.Context, roomCode, player string, score int) error
	ClearRoom(ctx context.Context, roomCode string) error
}

// HistoryRecorder records solved questions. Optional; a nil recorder
// disables history.
type HistoryRecorder interface {
	RecordAnswer(ctx context.Context, record AnswerRecord) error
}

// Room is one live game: an ordered roster, at most one active battle, and
// the set of connected sockets (players and host/TV watchers alike).
type Room struct {
	code    string
	mode    domain.BattleMode
	maxTime int
	scores  ScoreStore
	history HistoryRecorder

	mu      sync.Mutex
	players []domain.Player
	members map[*member]struct{}
	battle  *domain.Battle

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// member is one connected socket. Events are queued on send and drained by
// a writer goroutine owned by the ws handler.
type member struct {
	name string // empty for device/watcher clients
	send chan domain.Event
}

func newRoom(code string, mode domain.BattleMode, maxTime int, scores ScoreStore, history HistoryRecorder) *Room {
	r := &Room{
		code:    code,
		mode:    mode,
		maxTime: maxTime,
		scores:  scores,
		history: history,
		members: make(map[*member]struct{}),
		stopCh:  make(chan struct{}),
	}
	go r.countdown()
	return r
}

// countdown drives the 1 Hz timer: ticks decrement the active battle's
// remaining time, and a battle that reaches zero rolls over into a fresh one.
func (r *Room) countdown() {
	r.ticker = time.NewTicker(time.Second)
	defer r.ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ticker.C:
			r.mu.Lock()
			if r.battle == nil || len(r.players) == 0 {
				r.mu.Unlock()
				continue
			}
			next := *r.battle
			next.RemainingTime--
			if next.RemainingTime <= 0 {
				fresh := r.freshBattleLocked()
				r.battle = &fresh
				r.broadcastLocked(r.eventLocked(domain.EventBattle, "", ""))
			} else {
				r.battle = &next
				r.broadcastLocked(r.eventLocked(domain.EventTimerTick, "", ""))
			}
			r.mu.Unlock()
		}
	}
}

// Join adds a socket to the room. Named players occupy a roster slot with
// their persisted score; device clients only watch. Roster changes start a
// fresh battle so every member has a question.
func (r *Room) Join(ctx context.Context, m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m] = struct{}{}

	if m.name == "" {
		// Watchers get an immediate state snapshot and nothing else changes.
		m.send <- r.eventLocked(domain.EventHeartbeat, "", "")
		return
	}

	if !r.onRosterLocked(m.name) {
		score, err := r.scores.Score(ctx, r.code, m.name)
		if err != nil {
			log.Printf("score lookup for %s failed: %v", m.name, err)
		}
		r.players = append(r.players, domain.Player{Name: m.name, Score: score, Type: domain.PlayerStudent})
	}
	r.broadcastLocked(r.eventLocked(domain.EventJoin, m.name, m.name))

	fresh := r.freshBattleLocked()
	r.battle = &fresh
	r.broadcastLocked(r.eventLocked(domain.EventBattle, "", m.name))
}

// Leave drops a socket; named players also leave the roster.
func (r *Room) Leave(m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, m)
	if m.name == "" {
		return
	}
	for i := range r.players {
		if r.players[i].Name == m.name {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	r.broadcastLocked(r.eventLocked(domain.EventLeave, m.name, m.name))
}

// Answer scores a submitted answer. The server re-checks correctness even
// though well-behaved clients never transmit a wrong one; anything that
// fails the check is dropped.
func (r *Room) Answer(ctx context.Context, playerName, data string) {
	value, err := strconv.Atoi(data)
	if err != nil {
		return
	}

	r.mu.Lock()
	if r.battle == nil {
		r.mu.Unlock()
		return
	}
	question, ok := r.battle.QuestionFor(playerName)
	if !ok || value != question.CorrectAnswer {
		r.mu.Unlock()
		return
	}

	var score int
	for i := range r.players {
		if r.players[i].Name == playerName {
			r.players[i].Score++
			score = r.players[i].Score
			break
		}
	}
	r.broadcastLocked(r.eventLocked(domain.EventAnswer, data, playerName))

	fresh := r.freshBattleLocked()
	r.battle = &fresh
	r.broadcastLocked(r.eventLocked(domain.EventBattle, "", playerName))
	r.mu.Unlock()

	if err := r.scores.SetScore(ctx, r.code, playerName, score); err != nil {
		log.Printf("persist score for %s failed: %v", playerName, err)
	}
	if r.history != nil {
		record := AnswerRecord{RoomCode: r.code, PlayerName: playerName, Question: question, AnsweredAt: time.Now()}
		if err := r.history.RecordAnswer(ctx, record); err != nil {
			log.Printf("record answer failed: %v", err)
		}
	}
}

// Reset clears the round: a fresh battle goes out under the reset type.
func (r *Room) Reset(playerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fresh := r.freshBattleLocked()
	r.battle = &fresh
	r.broadcastLocked(r.eventLocked(domain.EventReset, "", playerName))
}

// IsEmpty reports whether no sockets remain.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// freshBattleLocked draws the next round, redrawing if it would repeat the
// current one so clients always observe a round transition.
func (r *Room) freshBattleLocked() domain.Battle {
	for attempt := 0; ; attempt++ {
		battle := domain.NewBattle(r.players, r.mode, r.maxTime)
		if r.battle == nil || !battle.Equal(*r.battle) || attempt >= 10 {
			return battle
		}
	}
}

func (r *Room) onRosterLocked(name string) bool {
	for i := range r.players {
		if r.players[i].Name == name {
			return true
		}
	}
	return false
}

// eventLocked builds an outbound event carrying the authoritative roster
// snapshot and active battle, as every event must.
func (r *Room) eventLocked(t domain.EventType, data, playerName string) domain.Event {
	players := make([]domain.Player, len(r.players))
	copy(players, r.players)
	event := domain.Event{Type: t, Data: data, PlayerName: playerName, Players: players}
	if r.battle != nil {
		battle := *r.battle
		questions := make(map[string]domain.Question, len(battle.Questions))
		for name, q := range battle.Questions {
			questions[name] = q
		}
		battle.Questions = questions
		event.ActiveBattle = &battle
	}
	return event
}

func (r *Room) broadcastLocked(event domain.Event) {
	for m := range r.members {
		select {
		case m.send <- event:
		default:
			// Drop the oldest queued event rather than block the room on
			// a slow socket.
			select {
			case <-m.send:
			default:
			}
			m.send <- event
		}
	}
}
