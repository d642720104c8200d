package game

import (
	"log"

	"github.com/patpanic/patpanic-backend/internal"
)

// roundLogic is the per-round behavior bound to a session. Implementations
// are stateless aside from the session pointer, so the right variant can be
// rebuilt from the round number alone when restoring a snapshot. All methods
// are called with the session mutex held.
type roundLogic interface {
	duration() int
	validateCard() error
	passCard() error
	handleTimerEnd()
	checkEndRound() bool
	setNextPlayer()
	generateRoundCards()
	endTurn()
}

// roundLogicFor is a pure function of the round number.
func roundLogicFor(g *GameInstance, round int) roundLogic {
	switch round {
	case 2:
		return &roundTwo{baseRound{g: g, round: 2}}
	case 3:
		return &roundThree{baseRound{g: g, round: 3}}
	default:
		return &roundOne{baseRound{g: g, round: 1}}
	}
}

// =============================================================================
// SHARED BASE
// =============================================================================

type baseRound struct {
	g     *GameInstance
	round int
}

func (b *baseRound) duration() int {
	return internal.GameRules[b.round].Duration
}

// checkEndRound reports whether every player has exhausted their turns.
func (b *baseRound) checkEndRound() bool {
	for _, p := range b.g.players {
		if p.RemainingTurns > 0 {
			return false
		}
	}
	return true
}

// setNextPlayer advances the ring to the next player who is active and still
// owes a turn, promoting them to current+main and moving the session to
// PLAYER_INSTRUCTION. With currentPlayerIndex == -1 (fresh round) every seat
// is scanned. No candidate means the round is over.
func (b *baseRound) setNextPlayer() {
	g := b.g
	if b.checkEndRound() {
		g.endRoundLocked()
		return
	}
	for _, p := range g.players {
		p.IsCurrentPlayer = false
		p.IsMainPlayer = false
	}

	n := len(g.players)
	for steps := 0; steps < n; steps++ {
		g.currentPlayerIndex = (g.currentPlayerIndex + 1 + n) % n
		candidate := g.players[g.currentPlayerIndex]
		if candidate.IsActive && candidate.RemainingTurns > 0 {
			candidate.IsCurrentPlayer = true
			candidate.IsMainPlayer = true
			g.state = internal.StatePlayerInstruction
			log.Printf("[setNextPlayer] room=%s: next player %s (index=%d)",
				g.RoomID, candidate.Name, g.currentPlayerIndex)
			return
		}
	}
	log.Printf("[setNextPlayer] room=%s: no players left for next turn", g.RoomID)
	g.endRoundLocked()
}

// generateRoundCards refills the working deck from the shared pool.
func (b *baseRound) generateRoundCards() {
	b.g.generateDeckLocked(b.round)
}

// endTurn folds the current player's turn score into their round and total
// scores, clamping at zero, and moves the session to PLAYER_RESULT.
func (b *baseRound) endTurn() {
	g := b.g
	g.stopTimerLocked()
	player := g.currentPlayerLocked()
	if player == nil {
		log.Printf("[endTurn] room=%s: no current player", g.RoomID)
		g.state = internal.StatePlayerResult
		return
	}
	player.IsCurrentPlayer = false
	player.RoundScore = max(0, player.RoundScore+player.TurnScore)
	player.Score = max(0, player.Score+player.TurnScore)
	player.RemainingTurns--
	g.state = internal.StatePlayerResult
	log.Printf("[endTurn] room=%s: %s banked %d (round=%d total=%d)",
		g.RoomID, player.Name, player.TurnScore, player.RoundScore, player.Score)
}

func (b *baseRound) handleTimerEnd() {
	b.endTurn()
}

// =============================================================================
// ROUND 1 — free description
// =============================================================================

// One turn per player. Every validated card is worth one point, passing is
// free, the turn runs the full clock.
type roundOne struct {
	baseRound
}

func (r *roundOne) validateCard() error {
	player := r.g.currentPlayerLocked()
	if player == nil {
		return ErrNotFound
	}
	// Draw before scoring so a failed draw leaves the turn untouched.
	if err := r.g.drawNextCardLocked(); err != nil {
		return err
	}
	player.TurnScore++
	return nil
}

func (r *roundOne) passCard() error {
	return r.g.drawNextCardLocked()
}

// =============================================================================
// ROUND 2 — one word, shrinking budget
// =============================================================================

// Three turns per player. A correct guess banks the remaining clock and ends
// the turn on the spot; a pass costs more the fewer turns the player has
// left, so stalling late in the round hurts.
type roundTwo struct {
	baseRound
}

func (r *roundTwo) validateCard() error {
	player := r.g.currentPlayerLocked()
	if player == nil {
		return ErrNotFound
	}
	player.TurnScore += r.g.timerSeconds
	r.endTurn()
	return nil
}

func (r *roundTwo) passCard() error {
	player := r.g.currentPlayerLocked()
	if player == nil {
		return ErrNotFound
	}
	if err := r.g.drawNextCardLocked(); err != nil {
		return err
	}
	player.TurnScore -= r.penalty(player.RemainingTurns)
	return nil
}

func (r *roundTwo) penalty(remainingTurns int) int {
	if p, ok := internal.GameRules[2].PassPenalties[remainingTurns]; ok {
		return p
	}
	return 0
}

// =============================================================================
// ROUND 3 — personal-card elimination
// =============================================================================

// The main player guesses their own personal card while the other players
// take sub-turns describing it. A describer who gives up is out for the rest
// of the turn and the main player's streak grows by one. The turn ends when
// the main player is the last one standing (survival bonus) or drops out
// themselves.
type roundThree struct {
	baseRound
}

func (r *roundThree) validateCard() error {
	g := r.g
	r.nextSubTurnPlayer()
	g.timerSeconds = r.duration()
	return nil
}

func (r *roundThree) passCard() error {
	g := r.g
	current := g.currentPlayerLocked()
	if current == nil {
		return ErrNotFound
	}
	current.IsActive = false
	if current.IsMainPlayer {
		r.endTurn()
		return nil
	}
	main := g.mainPlayerLocked()
	if main != nil {
		main.TurnScore++
	}
	if r.checkEndTurn() {
		r.endTurn()
		return nil
	}
	r.nextSubTurnPlayer()
	return nil
}

// handleTimerEnd is the pass path driven by the clock instead of a command.
// When the turn survives, the caller (the scheduler) sees PLAYING and chains
// a fresh sub-turn countdown.
func (r *roundThree) handleTimerEnd() {
	g := r.g
	current := g.currentPlayerLocked()
	if current == nil {
		r.endTurn()
		return
	}
	current.IsActive = false
	if current.IsMainPlayer {
		r.endTurn()
		return
	}
	main := g.mainPlayerLocked()
	if main != nil {
		main.TurnScore++
	}
	if r.checkEndTurn() {
		r.endTurn()
		return
	}
	r.nextSubTurnPlayer()
}

// checkEndTurn is true once elimination has run its course: at most one
// active player remains, or the main player themselves went inactive.
func (r *roundThree) checkEndTurn() bool {
	g := r.g
	if g.activePlayerCountLocked() <= 1 {
		return true
	}
	main := g.mainPlayerLocked()
	return main == nil || !main.IsActive
}

// nextSubTurnPlayer rotates the describing role to the next active player
// without touching main-player assignment or remaining turns.
func (r *roundThree) nextSubTurnPlayer() {
	g := r.g
	if r.checkEndTurn() {
		r.endTurn()
		return
	}
	if current := g.currentPlayerLocked(); current != nil {
		current.IsCurrentPlayer = false
	}
	n := len(g.players)
	for steps := 0; steps < n-1; steps++ {
		g.currentPlayerIndex = (g.currentPlayerIndex + 1) % n
		candidate := g.players[g.currentPlayerIndex]
		if candidate.IsActive {
			candidate.IsCurrentPlayer = true
			log.Printf("[nextSubTurnPlayer] room=%s: sub-turn to %s (index=%d)",
				g.RoomID, candidate.Name, g.currentPlayerIndex)
			return
		}
	}
}

// setNextPlayer re-activates everyone for the new elimination turn before
// picking the next main player, who must still owe a turn.
func (r *roundThree) setNextPlayer() {
	g := r.g
	if r.checkEndRound() {
		g.endRoundLocked()
		return
	}
	for _, p := range g.players {
		p.ResetForTurn()
	}

	n := len(g.players)
	for steps := 0; steps < n; steps++ {
		g.currentPlayerIndex = (g.currentPlayerIndex + 1 + n) % n
		candidate := g.players[g.currentPlayerIndex]
		if candidate.IsActive && candidate.RemainingTurns > 0 {
			candidate.IsCurrentPlayer = true
			candidate.IsMainPlayer = true
			g.state = internal.StatePlayerInstruction
			log.Printf("[setNextPlayer] room=%s: next main player %s (index=%d)",
				g.RoomID, candidate.Name, g.currentPlayerIndex)
			return
		}
	}
	log.Printf("[setNextPlayer] room=%s: no main player candidates left", g.RoomID)
	g.endRoundLocked()
}

// generateRoundCards loads only the main player's personal card; round three
// never draws from the shared pool.
func (r *roundThree) generateRoundCards() {
	g := r.g
	g.cards = g.cards[:0]
	main := g.mainPlayerLocked()
	if main == nil || main.PersonalCard == nil {
		log.Printf("[generateRoundCards] room=%s: main player has no personal card", g.RoomID)
		return
	}
	g.cards = append(g.cards, *main.PersonalCard)
	log.Printf("[generateRoundCards] room=%s: personal card loaded for %s", g.RoomID, main.Name)
}

// endTurn awards the survival bonus before the base fold: a main player who
// outlasted every describer earns twice the table size on top of their
// streak.
func (r *roundThree) endTurn() {
	g := r.g
	g.stopTimerLocked()
	main := g.mainPlayerLocked()
	if main == nil {
		log.Printf("[endTurn] room=%s: no main player", g.RoomID)
		g.state = internal.StatePlayerResult
		return
	}
	if main.IsActive {
		main.TurnScore += len(g.players) * 2
	}
	main.IsCurrentPlayer = false
	main.RoundScore = max(0, main.RoundScore+main.TurnScore)
	main.Score = max(0, main.Score+main.TurnScore)
	main.RemainingTurns--
	g.state = internal.StatePlayerResult
	log.Printf("[endTurn] room=%s: %s banked %d (bonus=%t round=%d total=%d)",
		g.RoomID, main.Name, main.TurnScore, main.IsActive, main.RoundScore, main.Score)
}
