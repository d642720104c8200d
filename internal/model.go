package internal

import "time"

const (
	// MaxRounds is the number of playable rounds; CurrentRound == MaxRounds+1
	// is the terminal pseudo-round.
	MaxRounds = 3

	// InviteConnectionRef marks players without a live connection (added from
	// the host screen, or bots).
	InviteConnectionRef = "invite"

	// CardsPerActivePlayer bounds how many cards a round deck may hold per
	// active player.
	CardsPerActivePlayer = 30
)

type GameState string

const (
	StateLobby             GameState = "LOBBY"
	StateRoundInstruction  GameState = "ROUND_INSTRUCTION"
	StatePlayerInstruction GameState = "PLAYER_INSTRUCTION"
	StatePlaying           GameState = "PLAYING"
	StatePlayerResult      GameState = "PLAYER_RESULT"
	StateRoundEnd          GameState = "ROUND_END"
	StateGameEnd           GameState = "GAME_END"
)

// Card is an immutable deck entry. Cards are compared by Title; there is no
// numeric id.
type Card struct {
	Title          string `json:"title"`
	Category       string `json:"category"`
	Color          string `json:"color"`
	ExcludedRounds []int  `json:"excluded_rounds"`
}

// ExcludedFrom reports whether the card may not appear in the given round.
func (c Card) ExcludedFrom(round int) bool {
	for _, r := range c.ExcludedRounds {
		if r == round {
			return true
		}
	}
	return false
}

// RoundConfig holds the fixed rules for one round.
type RoundConfig struct {
	Title             string      `json:"title"`
	Icon              string      `json:"icon"`
	Duration          int         `json:"duration"` // seconds per turn
	MaxTurnsPerPlayer int         `json:"max_turns_per_player"`
	PassPenalties     map[int]int `json:"pass_penalties,omitempty"` // remainingTurns -> penalty
	Rules             []string    `json:"rules"`
	Tips              string      `json:"tips"`
	Color             string      `json:"color"`
}

// GameRules is the compiled rule set, indexed by round number.
var GameRules = map[int]RoundConfig{
	1: {
		Title:             "The Eel",
		Icon:              "🪱",
		Duration:          45,
		MaxTurnsPerPlayer: 1,
		Rules: []string{
			"Describe the cards freely.",
			"You may say anything except the words on the card.",
			"No word limit!",
		},
		Tips:  "Be quick, this is the time to learn the cards!",
		Color: "blue",
	},
	2: {
		Title:             "The Owl",
		Icon:              "🦉",
		Duration:          30,
		MaxTurnsPerPlayer: 3,
		PassPenalties:     map[int]int{3: 2, 2: 3, 1: 4},
		Rules: []string{
			"One single word per card!",
			"The word must exist (no sound effects).",
			"You may not repeat a word already said.",
		},
		Tips:  "Pick the most striking keyword.",
		Color: "purple",
	},
	3: {
		Title:             "The Bee",
		Icon:              "🐝",
		Duration:          30,
		MaxTurnsPerPlayer: 1,
		Rules: []string{
			"Total silence!",
			"Mime the action or the object.",
			"Sound effects forbidden.",
		},
		Tips:  "Use your whole body!",
		Color: "orange",
	},
}

// Message is the envelope for every websocket frame, both directions.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

type TimerUpdateData struct {
	RoomID      string `json:"room_id"`
	SecondsLeft int    `json:"seconds_left"`
}

// GameStatus is the full room view broadcast after any state change.
type GameStatus struct {
	RoomID        string    `json:"room_id"`
	CurrentRound  int       `json:"current_round"`
	CurrentCard   *Card     `json:"current_card,omitempty"`
	CurrentPlayer *Player   `json:"current_player,omitempty"`
	MainPlayer    *Player   `json:"main_player,omitempty"`
	Players       []*Player `json:"players"`
	GameState     GameState `json:"game_state"`
	IsPaused      bool      `json:"is_paused"`
	TimerSeconds  int       `json:"timer_seconds"`
}

// Snapshot is the flat serializable copy of a session used for crash
// recovery. Keyed by RoomID in the store.
type Snapshot struct {
	RoomID             string    `json:"room_id"`
	GameState          GameState `json:"game_state"`
	CurrentRound       int       `json:"current_round"`
	CurrentPlayerIndex int       `json:"current_player_index"`
	IsPaused           bool      `json:"is_paused"`
	TimerSeconds       int       `json:"timer_seconds"`
	Players            []*Player `json:"players"`
	CurrentCard        *Card     `json:"current_card,omitempty"`
	UsedCards          []Card    `json:"used_cards"`
	Cards              []Card    `json:"cards"`
	LastActivity       time.Time `json:"last_activity"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Response is the envelope for REST endpoints, with request timing attached.
type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
