package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardExcludedFrom(t *testing.T) {
	card := Card{Title: "Submarine", ExcludedRounds: []int{2, 3}}
	assert.False(t, card.ExcludedFrom(1))
	assert.True(t, card.ExcludedFrom(2))
	assert.True(t, card.ExcludedFrom(3))

	open := Card{Title: "Banana"}
	for round := 1; round <= MaxRounds; round++ {
		assert.False(t, open.ExcludedFrom(round))
	}
}

func TestGameRules(t *testing.T) {
	require.Len(t, GameRules, MaxRounds)

	assert.Equal(t, 1, GameRules[1].MaxTurnsPerPlayer)
	assert.Equal(t, 45, GameRules[1].Duration)

	assert.Equal(t, 3, GameRules[2].MaxTurnsPerPlayer)
	assert.Equal(t, 30, GameRules[2].Duration)
	assert.Equal(t, map[int]int{3: 2, 2: 3, 1: 4}, GameRules[2].PassPenalties)

	assert.Equal(t, 1, GameRules[3].MaxTurnsPerPlayer)
	assert.Equal(t, 30, GameRules[3].Duration)
}

func TestPlayerResetForRound(t *testing.T) {
	p := Player{
		Name:            "Alice",
		Score:           40,
		RoundScore:      15,
		TurnScore:       5,
		IsActive:        false,
		IsCurrentPlayer: true,
		IsMainPlayer:    true,
	}
	p.ResetForRound(3)

	assert.Equal(t, 40, p.Score, "total score survives round resets")
	assert.Zero(t, p.RoundScore)
	assert.Zero(t, p.TurnScore)
	assert.True(t, p.IsActive)
	assert.False(t, p.IsCurrentPlayer)
	assert.False(t, p.IsMainPlayer)
	assert.Equal(t, 3, p.RemainingTurns)
}

func TestPlayerResetForTurn(t *testing.T) {
	p := Player{
		RoundScore:     9,
		TurnScore:      4,
		IsActive:       false,
		IsMainPlayer:   true,
		RemainingTurns: 1,
	}
	p.ResetForTurn()

	assert.Equal(t, 9, p.RoundScore, "round score survives turn resets")
	assert.Zero(t, p.TurnScore)
	assert.True(t, p.IsActive)
	assert.False(t, p.IsMainPlayer)
	assert.Equal(t, 1, p.RemainingTurns, "remaining turns only change between rounds")
}

func TestPlayerClone(t *testing.T) {
	card := Card{Title: "Lighthouse"}
	p := &Player{Id: "p1", Name: "Alice", PersonalCard: &card}

	clone := p.Clone()
	clone.Name = "Eve"
	clone.PersonalCard.Title = "Tampered"

	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "Lighthouse", p.PersonalCard.Title, "clone must not share the personal card")
}
