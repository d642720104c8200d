package game

import "errors"

// Command failures fall into four kinds. All are local to a single command:
// state is left untouched, nothing is retried.
var (
	// ErrValidation rejects malformed input (bad name, unknown theme).
	ErrValidation = errors.New("invalid input")

	// ErrWrongState rejects a command issued outside its allowed game states.
	ErrWrongState = errors.New("wrong game state")

	// ErrNotFound rejects a command referencing an unknown player or room.
	ErrNotFound = errors.New("not found")

	// ErrDeckExhausted signals a card draw with no regenerable deck. Fatal to
	// the current turn; the turn is not silently advanced.
	ErrDeckExhausted = errors.New("deck exhausted")
)
