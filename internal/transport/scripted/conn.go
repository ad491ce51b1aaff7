package scripted

import (
	"context"
	"sync"
	"time"

	"mathbattle/internal/domain"
	"mathbattle/internal/transport"
)

// Conn is a scripted stand-in for the live websocket session. Tests feed it
// events with Deliver and make assertions on what was sent; practice mode
// (see NewPractice) simulates a whole room locally so the client is playable
// offline.
type Conn struct {
	mu        sync.Mutex
	handler   transport.Handler
	script    []domain.Event
	connected bool
	closed    bool

	sent     []string
	resets   int
	connects int

	practice *practiceRoom
}

// New builds a scripted conn that replays the given events, in order, when
// Connect is called.
func New(script ...domain.Event) *Conn {
	return &Conn{script: script}
}

func (c *Conn) SetHandler(h transport.Handler) { c.handler = h }

// Connect marks the conn live and replays the script synchronously, so by
// the time Connect returns every scripted event has been handled.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.closed = false
	c.connects++
	script := c.script
	c.script = nil
	c.mu.Unlock()

	for _, event := range script {
		c.handler.HandleEvent(event)
	}
	if c.practice != nil {
		c.practice.start(c)
	}
	return nil
}

// Deliver hands an inbound event to the handler, as if the server sent it.
func (c *Conn) Deliver(event domain.Event) {
	c.handler.HandleEvent(event)
}

// Fail reports a transport-level error without closing the connection.
func (c *Conn) Fail(err error) {
	c.handler.HandleError(err)
}

// Drop simulates the server closing the connection.
func (c *Conn) Drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.handler.HandleClosed()
}

func (c *Conn) SendAnswer(answer string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	c.sent = append(c.sent, answer)
	c.mu.Unlock()

	if c.practice != nil {
		c.practice.answered(c, answer)
	}
	return nil
}

func (c *Conn) ResetGame() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	c.resets++
	c.mu.Unlock()

	if c.practice != nil {
		c.practice.reset(c)
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.connected = false
	c.closed = true
	c.mu.Unlock()
	if c.practice != nil {
		c.practice.stop()
	}
	return nil
}

// Sent returns a copy of every answer transmitted so far.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// Resets reports how many reset requests went out.
func (c *Conn) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Connects reports how many times Connect has been called.
func (c *Conn) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// practiceRoom simulates a single-room server: a two-player roster (the
// local player plus a house opponent), battle rollover on every correct
// answer or reset, and a one-second countdown tick.
type practiceRoom struct {
	mu       sync.Mutex
	userName string
	mode     domain.BattleMode
	maxTime  int
	players  []domain.Player
	battle   domain.Battle
	stopCh   chan struct{}
	stopOnce sync.Once
}

const practiceOpponent = "Jeff"

// NewPractice builds a conn backed by a simulated room, for offline play.
func NewPractice(userName string, mode domain.BattleMode, maxTime int) *Conn {
	room := &practiceRoom{
		userName: userName,
		mode:     mode,
		maxTime:  maxTime,
		players: []domain.Player{
			{Name: userName, Score: 0, Type: domain.PlayerStudent},
			{Name: practiceOpponent, Score: 0, Type: domain.PlayerStudent},
		},
		stopCh: make(chan struct{}),
	}
	room.battle = domain.NewBattle(room.players, mode, maxTime)
	return &Conn{practice: room}
}

func (r *practiceRoom) start(c *Conn) {
	r.mu.Lock()
	join := r.eventLocked(domain.EventJoin, r.userName, r.userName)
	battle := r.eventLocked(domain.EventBattle, "", r.userName)
	r.mu.Unlock()

	c.handler.HandleEvent(join)
	c.handler.HandleEvent(battle)
	go r.tick(c)
}

func (r *practiceRoom) tick(c *Conn) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.battle.RemainingTime--
			var event domain.Event
			if r.battle.RemainingTime <= 0 {
				r.battle = domain.NewBattle(r.players, r.mode, r.maxTime)
				event = r.eventLocked(domain.EventBattle, "", "")
			} else {
				event = r.eventLocked(domain.EventTimerTick, "", "")
			}
			r.mu.Unlock()
			c.handler.HandleEvent(event)
		}
	}
}

func (r *practiceRoom) answered(c *Conn, answer string) {
	r.mu.Lock()
	for i := range r.players {
		if r.players[i].Name == r.userName {
			r.players[i].Score++
		}
	}
	answerEvent := r.eventLocked(domain.EventAnswer, answer, r.userName)
	r.battle = domain.NewBattle(r.players, r.mode, r.maxTime)
	battleEvent := r.eventLocked(domain.EventBattle, "", r.userName)
	r.mu.Unlock()

	c.handler.HandleEvent(answerEvent)
	c.handler.HandleEvent(battleEvent)
}

func (r *practiceRoom) reset(c *Conn) {
	r.mu.Lock()
	r.battle = domain.NewBattle(r.players, r.mode, r.maxTime)
	event := r.eventLocked(domain.EventReset, "", "")
	r.mu.Unlock()
	c.handler.HandleEvent(event)
}

func (r *practiceRoom) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *practiceRoom) eventLocked(t domain.EventType, data, playerName string) domain.Event {
	players := make([]domain.Player, len(r.players))
	copy(players, r.players)
	battle := r.battle
	questions := make(map[string]domain.Question, len(battle.Questions))
	for name, q := range battle.Questions {
		questions[name] = q
	}
	battle.Questions = questions
	return domain.Event{
		Type:         t,
		Data:         data,
		PlayerName:   playerName,
		Players:      players,
		ActiveBattle: &battle,
	}
}
