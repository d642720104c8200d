package game

import (
	"context"

	"github.com/patpanic/patpanic-backend/internal"
)

// CardRepository serves the static card content loaded at process start.
// Read-only; the engine never mutates it.
type CardRepository interface {
	AllCards() []internal.Card
	CardsForTheme(name string) []internal.Card
	AllThemeNames() []string
	ThemeCapacity(name string) int
}

// SnapshotStore persists session snapshots for crash recovery plus card usage
// analytics. Save is called after every state-mutating command; failures are
// logged, never surfaced to the player-facing command result.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap internal.Snapshot) error
	LoadSnapshot(ctx context.Context, roomID string) (*internal.Snapshot, error)
	DeleteSnapshot(ctx context.Context, roomID string) error

	RecordCardValidated(ctx context.Context, card internal.Card, round int, elapsedSeconds int) error
	RecordCardPassed(ctx context.Context, card internal.Card, round int) error
}

// EventEmitter pushes state to whatever transport is attached to the room.
// Called synchronously after any state change; the engine is agnostic to the
// transport behind it.
type EventEmitter interface {
	EmitTimerUpdate(roomID string, secondsLeft int)
	EmitStatus(roomID string, status internal.GameStatus)
}

// NopEmitter drops every event. Used when a room has no attached transport.
type NopEmitter struct{}

func (NopEmitter) EmitTimerUpdate(string, int)            {}
func (NopEmitter) EmitStatus(string, internal.GameStatus) {}
