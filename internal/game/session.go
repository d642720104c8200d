package game

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/patpanic/patpanic-backend/internal"
)

// =============================================================================
// GAME SESSION
// =============================================================================

// GameInstance is the per-room session engine: player roster, working deck,
// round strategy, countdown timer and the state machine. All exported
// commands lock the session mutex; one lock per room, never global. The
// mutex protects against the two mutation sources racing each other: inbound
// player commands and the session's own timer tick.
type GameInstance struct {
	RoomID string

	mu                 sync.Mutex
	players            []*internal.Player
	cards              []internal.Card
	usedCards          []internal.Card
	currentCard        *internal.Card
	currentRound       int
	currentPlayerIndex int
	state              internal.GameState
	timerSeconds       int
	isPaused           bool
	lastActivity       time.Time

	logic      roundLogic
	timerCtx   context.Context
	timerStop  context.CancelFunc
	tickEvery  time.Duration // 1s in production, shortened in tests

	repo    CardRepository
	store   SnapshotStore
	emitter EventEmitter
}

func NewGameInstance(roomID string, repo CardRepository, store SnapshotStore, emitter EventEmitter) *GameInstance {
	g := &GameInstance{
		RoomID:             roomID,
		currentRound:       1,
		currentPlayerIndex: -1,
		state:              internal.StateLobby,
		lastActivity:       time.Now(),
		tickEvery:          time.Second,
		repo:               repo,
		store:              store,
		emitter:            emitter,
	}
	g.logic = roundLogicFor(g, 1)
	return g
}

// FromSnapshot reconstructs a session from a persisted snapshot. The round
// strategy is rebuilt from the round number alone; the timer is NOT
// restarted — play resumes manually.
func FromSnapshot(snap *internal.Snapshot, repo CardRepository, store SnapshotStore, emitter EventEmitter) *GameInstance {
	g := NewGameInstance(snap.RoomID, repo, store, emitter)
	g.players = make([]*internal.Player, 0, len(snap.Players))
	for _, p := range snap.Players {
		g.players = append(g.players, p.Clone())
	}
	g.cards = append([]internal.Card(nil), snap.Cards...)
	g.usedCards = append([]internal.Card(nil), snap.UsedCards...)
	if snap.CurrentCard != nil {
		card := *snap.CurrentCard
		g.currentCard = &card
	}
	g.currentRound = snap.CurrentRound
	g.currentPlayerIndex = snap.CurrentPlayerIndex
	g.state = snap.GameState
	g.timerSeconds = snap.TimerSeconds
	g.isPaused = snap.IsPaused
	g.lastActivity = snap.LastActivity
	g.logic = roundLogicFor(g, g.currentRound)

	log.Printf("[FromSnapshot] room=%s: restored (state=%s round=%d players=%d)",
		g.RoomID, g.state, g.currentRound, len(g.players))
	return g
}

func (g *GameInstance) touchLocked() {
	g.lastActivity = time.Now()
}

// LastActivity is read by the registry's inactivity sweep.
func (g *GameInstance) LastActivity() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActivity
}

// Cleanup stops the session's timer. Called on room close and eviction.
func (g *GameInstance) Cleanup() {
	g.mu.Lock()
	g.stopTimerLocked()
	g.mu.Unlock()
	log.Printf("[Cleanup] room=%s: timer stopped", g.RoomID)
}

// =============================================================================
// ROSTER COMMANDS
// =============================================================================

// AddPlayer joins a named player to the lobby. ConnectionRef is the
// transport handle, or internal.InviteConnectionRef for offline players.
func (g *GameInstance) AddPlayer(name, connectionRef string) (*internal.Player, error) {
	g.mu.Lock()
	if g.state != internal.StateLobby {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: players can only join in the lobby", ErrWrongState)
	}
	if utf8.RuneCountInString(name) < 2 {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: player name %q is too short", ErrValidation, name)
	}
	if connectionRef == "" {
		connectionRef = internal.InviteConnectionRef
	}
	g.touchLocked()

	player := &internal.Player{
		Id:            uuid.NewString(),
		Name:          name,
		Icon:          "🕺",
		IsActive:      true,
		ConnectionRef: connectionRef,
	}
	g.players = append(g.players, player)
	log.Printf("[AddPlayer] room=%s: added player %s (%s), total=%d",
		g.RoomID, player.Id, player.Name, len(g.players))

	out := player.Clone()
	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return out, nil
}

// RemovePlayer drops a player from the roster. Lobby only.
func (g *GameInstance) RemovePlayer(playerID string) error {
	g.mu.Lock()
	if g.state != internal.StateLobby {
		g.mu.Unlock()
		return fmt.Errorf("%w: players can only be removed in the lobby", ErrWrongState)
	}
	idx := -1
	for i, p := range g.players {
		if p.Id == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		g.mu.Unlock()
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	g.touchLocked()

	removed := g.players[idx]
	g.players = append(g.players[:idx], g.players[idx+1:]...)
	log.Printf("[RemovePlayer] room=%s: removed player %s (%s), remaining=%d",
		g.RoomID, removed.Id, removed.Name, len(g.players))

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// UpdatePlayerProfile changes display name and/or icon. Empty means keep.
func (g *GameInstance) UpdatePlayerProfile(playerID, newName, newIcon string) error {
	g.mu.Lock()
	player := g.findPlayerLocked(playerID)
	if player == nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	g.touchLocked()
	if newName != "" {
		player.Name = newName
	}
	if newIcon != "" {
		player.Icon = newIcon
	}
	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// Reconnect transfers a player identity to a new connection.
func (g *GameInstance) Reconnect(playerID, newConnectionRef string) (*internal.Player, error) {
	g.mu.Lock()
	player := g.findPlayerLocked(playerID)
	if player == nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	g.touchLocked()
	old := player.ConnectionRef
	player.ConnectionRef = newConnectionRef
	log.Printf("[Reconnect] room=%s: player %s connection %s -> %s",
		g.RoomID, player.Name, old, newConnectionRef)

	out := player.Clone()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.persist(snap)
	return out, nil
}

// AdjustTurnScore applies a host correction to a player's scores. All three
// counters are clamped at zero.
func (g *GameInstance) AdjustTurnScore(playerID string, delta int) error {
	g.mu.Lock()
	player := g.findPlayerLocked(playerID)
	if player == nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	g.touchLocked()
	player.TurnScore = max(0, player.TurnScore+delta)
	player.RoundScore = max(0, player.RoundScore+delta)
	player.Score = max(0, player.Score+delta)
	log.Printf("[AdjustTurnScore] room=%s: player %s adjusted by %d to turnScore=%d",
		g.RoomID, player.Name, delta, player.TurnScore)

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// SelectPersonalTheme assigns a player their personal card for the
// elimination round, drawn from the chosen theme. A previously assigned card
// is released back from the used pool first.
func (g *GameInstance) SelectPersonalTheme(playerID, theme string) error {
	g.mu.Lock()
	if g.state != internal.StateLobby {
		g.mu.Unlock()
		return fmt.Errorf("%w: personal cards are picked in the lobby", ErrWrongState)
	}
	player := g.findPlayerLocked(playerID)
	if player == nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	pool := g.repo.CardsForTheme(theme)
	if len(pool) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: unknown theme %q", ErrValidation, theme)
	}
	g.touchLocked()

	if player.PersonalCard != nil {
		g.releaseUsedCardLocked(player.PersonalCard.Title)
		player.PersonalCard = nil
	}

	candidates := make([]internal.Card, 0, len(pool))
	for _, c := range pool {
		if c.ExcludedFrom(3) || g.isUsedLocked(c.Title) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: no cards left in theme %q", ErrDeckExhausted, theme)
	}
	card := candidates[rand.Intn(len(candidates))]
	player.PersonalCard = &card
	g.usedCards = append(g.usedCards, card)
	log.Printf("[SelectPersonalTheme] room=%s: player %s picked %q -> %q",
		g.RoomID, player.Name, theme, card.Title)

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// =============================================================================
// STATE MACHINE COMMANDS
// =============================================================================

// InitializeRound moves the session into the next round's instruction screen,
// or to GAME_END once the terminal round is reached.
func (g *GameInstance) InitializeRound() error {
	g.mu.Lock()
	if g.state != internal.StateLobby && g.state != internal.StateRoundEnd {
		g.mu.Unlock()
		return fmt.Errorf("%w: round can only start from lobby or round end", ErrWrongState)
	}
	g.touchLocked()

	if g.currentRound > internal.MaxRounds {
		g.state = internal.StateGameEnd
		log.Printf("[InitializeRound] room=%s: game over", g.RoomID)
		status := g.statusLocked()
		snap := g.snapshotLocked()
		g.mu.Unlock()
		g.emitter.EmitStatus(g.RoomID, status)
		g.persist(snap)
		return nil
	}

	g.logic = roundLogicFor(g, g.currentRound)
	cfg := internal.GameRules[g.currentRound]
	for _, p := range g.players {
		p.ResetForRound(cfg.MaxTurnsPerPlayer)
	}
	g.currentPlayerIndex = -1
	g.state = internal.StateRoundInstruction
	log.Printf("[InitializeRound] room=%s: round %d (%s), %d turns per player",
		g.RoomID, g.currentRound, cfg.Title, cfg.MaxTurnsPerPlayer)

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// SetupNextPlayerTurn delegates to the round strategy's advance algorithm:
// either the next eligible player becomes current+main and the session moves
// to PLAYER_INSTRUCTION, or the round ends.
func (g *GameInstance) SetupNextPlayerTurn() error {
	g.mu.Lock()
	if g.state != internal.StateRoundInstruction && g.state != internal.StatePlayerResult {
		g.mu.Unlock()
		return fmt.Errorf("%w: no turn to set up in state %s", ErrWrongState, g.state)
	}
	g.touchLocked()
	g.logic.setNextPlayer()

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// StartTurn begins the current player's timed turn: the strategy repopulates
// the deck, the first card is drawn and the countdown starts.
func (g *GameInstance) StartTurn() error {
	g.mu.Lock()
	if g.state != internal.StatePlayerInstruction {
		g.mu.Unlock()
		return fmt.Errorf("%w: turn can only start from player instructions", ErrWrongState)
	}
	g.touchLocked()

	g.logic.generateRoundCards()
	if len(g.cards) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: no cards available for this turn", ErrDeckExhausted)
	}

	g.timerSeconds = g.logic.duration()
	g.state = internal.StatePlaying
	g.startTimerLocked()
	if err := g.drawNextCardLocked(); err != nil {
		// Deck was just generated non-empty, so this cannot fire; kept as a
		// hard guard against a strategy regression.
		g.stopTimerLocked()
		g.state = internal.StatePlayerInstruction
		g.mu.Unlock()
		return err
	}
	log.Printf("[StartTurn] room=%s: turn started, %ds on the clock, card=%q",
		g.RoomID, g.timerSeconds, g.currentCard.Title)

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// ValidateCard scores the current card per the round strategy.
func (g *GameInstance) ValidateCard() error {
	g.mu.Lock()
	if g.state != internal.StatePlaying {
		g.mu.Unlock()
		return fmt.Errorf("%w: no card to validate in state %s", ErrWrongState, g.state)
	}
	g.touchLocked()
	before := g.timerSeconds
	card := g.currentCard

	if err := g.logic.validateCard(); err != nil {
		g.mu.Unlock()
		return err
	}
	elapsed := before - g.timerSeconds
	round := g.currentRound
	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	if card != nil {
		g.recordValidated(*card, round, elapsed)
	}
	return nil
}

// PassCard skips the current card per the round strategy.
func (g *GameInstance) PassCard() error {
	g.mu.Lock()
	if g.state != internal.StatePlaying {
		g.mu.Unlock()
		return fmt.Errorf("%w: no card to pass in state %s", ErrWrongState, g.state)
	}
	g.touchLocked()
	card := g.currentCard

	if err := g.logic.passCard(); err != nil {
		g.mu.Unlock()
		return err
	}
	round := g.currentRound
	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	if card != nil {
		g.recordPassed(*card, round)
	}
	return nil
}

// PauseToggle freezes or resumes the countdown. The game state stays
// PLAYING; only the clock stops.
func (g *GameInstance) PauseToggle() error {
	g.mu.Lock()
	if g.state != internal.StatePlaying && !g.isPaused {
		g.mu.Unlock()
		return fmt.Errorf("%w: nothing to pause in state %s", ErrWrongState, g.state)
	}
	g.touchLocked()
	g.isPaused = !g.isPaused
	if g.isPaused {
		g.stopTimerLocked()
		log.Printf("[PauseToggle] room=%s: paused at %ds", g.RoomID, g.timerSeconds)
	} else {
		g.startTimerLocked()
		log.Printf("[PauseToggle] room=%s: resumed at %ds", g.RoomID, g.timerSeconds)
	}

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// RestartGame returns the session to the lobby, clearing all round, score
// and deck state but keeping the roster.
func (g *GameInstance) RestartGame() error {
	g.mu.Lock()
	g.touchLocked()
	g.stopTimerLocked()
	g.currentRound = 1
	for _, p := range g.players {
		p.IsCurrentPlayer = false
		p.IsActive = true
		p.IsMainPlayer = false
		p.Score = 0
		p.RoundScore = 0
		p.TurnScore = 0
		p.RemainingTurns = 0
		p.PersonalCard = nil
	}
	g.state = internal.StateLobby
	g.usedCards = nil
	g.cards = nil
	g.currentCard = nil
	g.currentPlayerIndex = -1
	g.isPaused = false
	g.timerSeconds = 0
	g.logic = roundLogicFor(g, 1)
	log.Printf("[RestartGame] room=%s: back to lobby with %d players", g.RoomID, len(g.players))

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return nil
}

// =============================================================================
// VIEWS
// =============================================================================

// Status returns the broadcastable view of the session.
func (g *GameInstance) Status() internal.GameStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

// Snapshot returns the persistable flat copy of the session.
func (g *GameInstance) Snapshot() internal.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *GameInstance) statusLocked() internal.GameStatus {
	players := make([]*internal.Player, 0, len(g.players))
	for _, p := range g.players {
		players = append(players, p.Clone())
	}
	status := internal.GameStatus{
		RoomID:       g.RoomID,
		CurrentRound: g.currentRound,
		Players:      players,
		GameState:    g.state,
		IsPaused:     g.isPaused,
		TimerSeconds: g.timerSeconds,
	}
	if g.currentCard != nil {
		card := *g.currentCard
		status.CurrentCard = &card
	}
	if g.currentPlayerIndex >= 0 && g.currentPlayerIndex < len(players) {
		status.CurrentPlayer = players[g.currentPlayerIndex]
	}
	for _, p := range players {
		if p.IsMainPlayer {
			status.MainPlayer = p
			break
		}
	}
	return status
}

func (g *GameInstance) snapshotLocked() internal.Snapshot {
	players := make([]*internal.Player, 0, len(g.players))
	for _, p := range g.players {
		players = append(players, p.Clone())
	}
	snap := internal.Snapshot{
		RoomID:             g.RoomID,
		GameState:          g.state,
		CurrentRound:       g.currentRound,
		CurrentPlayerIndex: g.currentPlayerIndex,
		IsPaused:           g.isPaused,
		TimerSeconds:       g.timerSeconds,
		Players:            players,
		UsedCards:          append([]internal.Card(nil), g.usedCards...),
		Cards:              append([]internal.Card(nil), g.cards...),
		LastActivity:       g.lastActivity,
	}
	if g.currentCard != nil {
		card := *g.currentCard
		snap.CurrentCard = &card
	}
	return snap
}

// =============================================================================
// INTERNAL HELPERS (lock held)
// =============================================================================

func (g *GameInstance) findPlayerLocked(playerID string) *internal.Player {
	for _, p := range g.players {
		if p.Id == playerID {
			return p
		}
	}
	return nil
}

func (g *GameInstance) currentPlayerLocked() *internal.Player {
	if g.currentPlayerIndex < 0 || g.currentPlayerIndex >= len(g.players) {
		return nil
	}
	return g.players[g.currentPlayerIndex]
}

func (g *GameInstance) mainPlayerLocked() *internal.Player {
	for _, p := range g.players {
		if p.IsMainPlayer {
			return p
		}
	}
	return nil
}

func (g *GameInstance) activePlayerCountLocked() int {
	count := 0
	for _, p := range g.players {
		if p.IsActive {
			count++
		}
	}
	return count
}

func (g *GameInstance) isUsedLocked(title string) bool {
	for _, c := range g.usedCards {
		if c.Title == title {
			return true
		}
	}
	return false
}

func (g *GameInstance) releaseUsedCardLocked(title string) {
	for i, c := range g.usedCards {
		if c.Title == title {
			g.usedCards = append(g.usedCards[:i], g.usedCards[i+1:]...)
			return
		}
	}
}

func (g *GameInstance) endRoundLocked() {
	g.currentRound++
	g.state = internal.StateRoundEnd
	log.Printf("[endRound] room=%s: round finished, next=%d", g.RoomID, g.currentRound)
}

// =============================================================================
// PERSISTENCE & ANALYTICS (fire-and-forget)
// =============================================================================

func (g *GameInstance) persist(snap internal.Snapshot) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.SaveSnapshot(ctx, snap); err != nil {
			log.Printf("[persist] room=%s: snapshot save failed: %v", g.RoomID, err)
		}
	}()
}

func (g *GameInstance) recordValidated(card internal.Card, round, elapsed int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.RecordCardValidated(ctx, card, round, elapsed); err != nil {
			log.Printf("[recordValidated] room=%s: %v", g.RoomID, err)
		}
	}()
}

func (g *GameInstance) recordPassed(card internal.Card, round int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.RecordCardPassed(ctx, card, round); err != nil {
			log.Printf("[recordPassed] room=%s: %v", g.RoomID, err)
		}
	}()
}
