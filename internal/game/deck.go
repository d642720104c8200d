package game

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/patpanic/patpanic-backend/internal"
)

// generateDeckLocked rebuilds the working deck for the given round from the
// shared pool: cards excluded from the round or already used never make it
// in. Only the prefix the turn can actually consume is shuffled (partial
// Fisher-Yates); the deck is sized at CardsPerActivePlayer per active player
// minus what the room already burned.
func (g *GameInstance) generateDeckLocked(round int) {
	candidates := make([]internal.Card, 0)
	for _, c := range g.repo.AllCards() {
		if c.ExcludedFrom(round) || g.isUsedLocked(c.Title) {
			continue
		}
		candidates = append(candidates, c)
	}

	want := g.activePlayerCountLocked()*internal.CardsPerActivePlayer - len(g.usedCards)
	if want > len(candidates) {
		want = len(candidates)
	}
	if want < 0 {
		want = 0
	}

	for i := 0; i < want; i++ {
		j := i + rand.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	g.cards = candidates[:want]
	log.Printf("[generateDeck] room=%s: round=%d deck=%d (pool=%d used=%d)",
		g.RoomID, round, len(g.cards), len(candidates), len(g.usedCards))
}

// drawNextCardLocked pops the top of the deck into currentCard and marks it
// used. An empty deck is regenerated once; a deck that is still empty means
// the pool is spent.
func (g *GameInstance) drawNextCardLocked() error {
	if len(g.cards) == 0 {
		g.logic.generateRoundCards()
	}
	if len(g.cards) == 0 {
		return fmt.Errorf("%w: room %s has no cards left to draw", ErrDeckExhausted, g.RoomID)
	}
	card := g.cards[0]
	g.cards = g.cards[1:]
	g.currentCard = &card
	// Personal cards enter usedCards at selection time; don't record twice.
	if !g.isUsedLocked(card.Title) {
		g.usedCards = append(g.usedCards, card)
	}
	log.Printf("[drawNextCard] room=%s: %q (used=%d)", g.RoomID, card.Title, len(g.usedCards))
	return nil
}
