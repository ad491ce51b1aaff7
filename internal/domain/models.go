package domain

import "math/rand"

// EventType enumerates the message kinds exchanged over the game socket.
type EventType string

const (
	EventJoin      EventType = "join"
	EventLeave     EventType = "leave"
	EventBattle    EventType = "battle"
	EventAnswer    EventType = "answer"
	EventHeartbeat EventType = "heartbeat"
	EventReset     EventType = "reset"
	EventTimerTick EventType = "timerTick"

	// EventQuestion belongs to the retired single-question protocol. It is
	// still accepted on decode so older servers don't break newer clients;
	// when it carries a battle it is handled exactly like EventBattle.
	EventQuestion EventType = "question"
)

// BattleMode selects how questions are distributed across the roster.
type BattleMode string

const (
	// BattleShared gives every player the identical question.
	BattleShared BattleMode = "shared"
	// BattleSpeedTrial gives each player an independently drawn question.
	BattleSpeedTrial BattleMode = "speedTrial"
)

// PlayerType only affects how a player is displayed.
type PlayerType string

const (
	PlayerStudent PlayerType = "student"
	PlayerParent  PlayerType = "parent"
)

// Question is a single multiplication problem. Two questions with the same
// operands are the same question no matter where they were generated, so
// equality deliberately ignores CorrectAnswer.
type Question struct {
	LHS           int `json:"lhs"`
	RHS           int `json:"rhs"`
	CorrectAnswer int `json:"correctAnswer"`
}

// NewQuestion draws both operands uniformly from [1,10].
func NewQuestion() Question {
	lhs := rand.Intn(10) + 1
	rhs := rand.Intn(10) + 1
	return Question{LHS: lhs, RHS: rhs, CorrectAnswer: lhs * rhs}
}

// Equal compares by operands only.
func (q Question) Equal(other Question) bool {
	return q.LHS == other.LHS && q.RHS == other.RHS
}

// Player is a roster entry. Score is server-authoritative; clients never
// compute it locally.
type Player struct {
	Name  string     `json:"name"`
	Score int        `json:"score"`
	Type  PlayerType `json:"type,omitempty"`
}

// Battle is one round of play: a question per roster member plus a countdown.
// A battle is immutable once constructed; a new round replaces it wholesale.
type Battle struct {
	Questions     map[string]Question `json:"questions"`
	Mode          BattleMode          `json:"mode"`
	RemainingTime int                 `json:"remainingTime"`
}

// NewBattle builds a round for the given roster. Under shared mode every
// player gets the identical question.
func NewBattle(players []Player, mode BattleMode, maxTime int) Battle {
	questions := make(map[string]Question, len(players))
	shared := NewQuestion()
	for _, p := range players {
		if mode == BattleShared {
			questions[p.Name] = shared
		} else {
			questions[p.Name] = NewQuestion()
		}
	}
	return Battle{Questions: questions, Mode: mode, RemainingTime: maxTime}
}

// Equal is content-based: same mode, same roster keys, and per-key questions
// equal by operands. RemainingTime is excluded so timer ticks and redundant
// re-broadcasts of the same round never count as a new battle.
func (b Battle) Equal(other Battle) bool {
	if b.Mode != other.Mode || len(b.Questions) != len(other.Questions) {
		return false
	}
	for name, q := range b.Questions {
		oq, ok := other.Questions[name]
		if !ok || !q.Equal(oq) {
			return false
		}
	}
	return true
}

// QuestionFor looks up the question assigned to a player in this round.
func (b Battle) QuestionFor(name string) (Question, bool) {
	q, ok := b.Questions[name]
	return q, ok
}

// Event is the wire message. Every inbound event carries the full roster;
// Question is only set by servers speaking the retired single-question
// protocol.
type Event struct {
	Type         EventType `json:"type"`
	Data         string    `json:"data"`
	PlayerName   string    `json:"playerName,omitempty"`
	Players      []Player  `json:"players,omitempty"`
	Question     *Question `json:"question,omitempty"`
	ActiveBattle *Battle   `json:"activeBattle,omitempty"`
}
