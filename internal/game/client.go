package game

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"mathbattle/internal/domain"
	"mathbattle/internal/transport"
)

// State is the connection lifecycle of a client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Outcome is the result of an answer submission.
type Outcome int

const (
	// SubmitIgnored means the input was not an integer or there was no
	// question to answer; nothing happened.
	SubmitIgnored Outcome = iota
	// SubmitIncorrect means the answer was wrong. It was never transmitted;
	// wrong guesses stay local.
	SubmitIncorrect
	// SubmitSent means the answer was correct and went to the server.
	SubmitSent
)

// Callbacks are presentation hooks, all optional. They fire outside the
// client's lock, on whichever goroutine triggered the transition.
type Callbacks struct {
	// OnIncorrect fires when a submitted answer fails local validation.
	OnIncorrect func()
	// OnBattleChange fires when a genuinely new round replaces the current
	// one. Redundant re-broadcasts of the same round do not fire it.
	OnBattleChange func()
	// OnDisconnect fires after a disconnection has cleared session state,
	// before the automatic reconnect starts.
	OnDisconnect func()
}

// ReconnectPolicy bounds the automatic reconnect loop. The original client
// retried immediately and forever; that thundering-herd behavior is replaced
// with capped exponential backoff.
type ReconnectPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxRetries caps consecutive failed attempts before the client gives
	// up and stays disconnected. Zero means retry indefinitely (with
	// backoff).
	MaxRetries uint64
}

// DefaultReconnectPolicy is a sane default for interactive play.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxRetries:      20,
	}
}

// Snapshot is the published view of client state for the presentation layer.
// Battles are immutable; sharing their pointers is safe.
type Snapshot struct {
	State          State
	Players        []domain.Player
	CurrentPlayer  *domain.Player
	ActiveBattle   *domain.Battle
	PreviousBattle *domain.Battle
	RemainingTime  int
}

// Client reconciles the event stream from one transport.Conn into consistent
// game state. The server is the single source of truth: every inbound event
// fully replaces the roster, and scores are never computed locally.
//
// Answers are validated locally before transmission and wrong guesses never
// reach the server. That trades cheat-resistance for zero round-trip latency
// on a miss; anyone who can read process memory can defeat it.
type Client struct {
	conn      transport.Conn
	userName  string // empty for host/TV clients
	policy    ReconnectPolicy
	callbacks Callbacks

	mu             sync.RWMutex
	state          State
	players        []domain.Player
	currentPlayer  *domain.Player
	activeBattle   *domain.Battle
	previousBattle *domain.Battle
	remainingTime  int
	subscribers    map[chan Snapshot]struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient pairs a client with its transport for good. userName is empty
// for host/TV clients, which track the room without occupying a roster slot.
func NewClient(conn transport.Conn, userName string, policy ReconnectPolicy, callbacks Callbacks) *Client {
	c := &Client{
		conn:        conn,
		userName:    userName,
		policy:      policy,
		callbacks:   callbacks,
		state:       StateDisconnected,
		subscribers: make(map[chan Snapshot]struct{}),
		closed:      make(chan struct{}),
	}
	conn.SetHandler(c)
	return c
}

// Connect opens the transport. The client stays in connecting until the
// first event arrives.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	if err := c.conn.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	return nil
}

// HandleEvent applies one inbound event. The transport invokes it from a
// single receive goroutine, so events are applied strictly in arrival order.
func (c *Client) HandleEvent(event domain.Event) {
	c.mu.Lock()
	c.state = StateActive

	// Roster is replaced wholesale on every event, whatever its type.
	c.players = event.Players
	c.currentPlayer = nil
	for i := range c.players {
		if c.players[i].Name == c.userName && c.userName != "" {
			player := c.players[i]
			c.currentPlayer = &player
			break
		}
	}

	battleChanged := false
	switch event.Type {
	case domain.EventBattle, domain.EventReset, domain.EventQuestion:
		if next := inboundBattle(event); next != nil {
			if c.activeBattle == nil || !c.activeBattle.Equal(*next) {
				c.previousBattle = c.activeBattle
				c.activeBattle = next
				c.remainingTime = next.RemainingTime
				battleChanged = true
			}
		}
	case domain.EventTimerTick:
		// Countdown only; current and previous battle stay untouched.
		if event.ActiveBattle != nil {
			c.remainingTime = event.ActiveBattle.RemainingTime
		}
	}

	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snapshot)
	if battleChanged && c.callbacks.OnBattleChange != nil {
		c.callbacks.OnBattleChange()
	}
}

// inboundBattle extracts the round carried by an event. Legacy
// single-question events without an embedded battle are roster-only.
func inboundBattle(event domain.Event) *domain.Battle {
	if event.ActiveBattle == nil {
		return nil
	}
	battle := *event.ActiveBattle
	return &battle
}

// HandleError logs a transport failure. It does not tear down state; a
// failure that kills the connection is reported separately via HandleClosed.
func (c *Client) HandleError(err error) {
	log.Printf("game connection error: %v", err)
}

// HandleClosed clears all session-scoped state and starts the automatic
// reconnect. Roster, current player and both battles are gone before the
// first retry fires.
func (c *Client) HandleClosed() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.players = nil
	c.currentPlayer = nil
	c.activeBattle = nil
	c.previousBattle = nil
	c.remainingTime = 0
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snapshot)
	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect()
	}

	select {
	case <-c.closed:
		return
	default:
	}
	go c.reconnect()
}

func (c *Client) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.policy.InitialInterval
	policy.MaxInterval = c.policy.MaxInterval
	policy.MaxElapsedTime = 0

	var strategy backoff.BackOff = policy
	if c.policy.MaxRetries > 0 {
		strategy = backoff.WithMaxRetries(policy, c.policy.MaxRetries)
	}

	attempt := func() error {
		select {
		case <-c.closed:
			return backoff.Permanent(context.Canceled)
		default:
		}
		c.setState(StateConnecting)
		return c.conn.Connect(context.Background())
	}
	if err := backoff.Retry(attempt, strategy); err != nil {
		c.setState(StateDisconnected)
		log.Printf("reconnect abandoned: %v", err)
	}
}

// SubmitAnswer validates raw input against the current player's question.
// Non-numeric input is a no-op; a wrong answer fires OnIncorrect and stays
// local; only a correct answer produces network traffic.
func (c *Client) SubmitAnswer(raw string) Outcome {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return SubmitIgnored
	}

	c.mu.RLock()
	player := c.currentPlayer
	battle := c.activeBattle
	c.mu.RUnlock()

	if player == nil || battle == nil {
		return SubmitIgnored
	}
	question, ok := battle.QuestionFor(player.Name)
	if !ok {
		return SubmitIgnored
	}
	if value != question.CorrectAnswer {
		if c.callbacks.OnIncorrect != nil {
			c.callbacks.OnIncorrect()
		}
		return SubmitIncorrect
	}

	if err := c.conn.SendAnswer(raw); err != nil {
		// Lost sends are not retried; the next broadcast resynchronizes.
		log.Printf("answer send failed: %v", err)
	}
	return SubmitSent
}

// ResetGame asks the server to clear the current round.
func (c *Client) ResetGame() {
	if err := c.conn.ResetGame(); err != nil {
		log.Printf("reset send failed: %v", err)
	}
}

// Snapshot returns the current published state.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of state snapshots for the presentation
// layer. The caller must invoke the returned cancel function to avoid leaks.
func (c *Client) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	initial := c.snapshotLocked()
	c.mu.Unlock()

	ch <- initial

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the client for good: no further reconnect attempts.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *Client) snapshotLocked() Snapshot {
	players := make([]domain.Player, len(c.players))
	copy(players, c.players)
	return Snapshot{
		State:          c.state,
		Players:        players,
		CurrentPlayer:  c.currentPlayer,
		ActiveBattle:   c.activeBattle,
		PreviousBattle: c.previousBattle,
		RemainingTime:  c.remainingTime,
	}
}

func (c *Client) publish(snapshot Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale snapshot so a slow consumer never blocks
			// the receive path.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snapshot)
}
