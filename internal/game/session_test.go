package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/patpanic/patpanic-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo serves a generated pool of cards, with a couple of themed decks
// and a handful of cards locked out of specific rounds.
type fakeRepo struct {
	cards  []internal.Card
	themes map[string][]internal.Card
}

func newFakeRepo() *fakeRepo {
	repo := &fakeRepo{themes: make(map[string][]internal.Card)}
	for i := 0; i < 120; i++ {
		card := internal.Card{
			Title:    fmt.Sprintf("card-%d", i),
			Category: "general",
			Color:    "#AABBCC",
		}
		if i%40 == 0 {
			card.ExcludedRounds = []int{2}
		}
		repo.cards = append(repo.cards, card)
	}
	repo.themes["animals"] = []internal.Card{
		{Title: "Platypus", Category: "animals", Color: "#00FF00"},
		{Title: "Axolotl", Category: "animals", Color: "#00FF00"},
		{Title: "Capuchin", Category: "animals", Color: "#00FF00"},
		{Title: "Wombat", Category: "animals", Color: "#00FF00"},
		{Title: "Tapir", Category: "animals", Color: "#00FF00"},
		{Title: "Quokka", Category: "animals", Color: "#00FF00", ExcludedRounds: []int{3}},
	}
	repo.themes["movies"] = []internal.Card{
		{Title: "Jaws", Category: "movies", Color: "#FF0000"},
		{Title: "Alien", Category: "movies", Color: "#FF0000"},
	}
	return repo
}

func (r *fakeRepo) AllCards() []internal.Card { return r.cards }
func (r *fakeRepo) CardsForTheme(name string) []internal.Card {
	return r.themes[name]
}
func (r *fakeRepo) AllThemeNames() []string {
	return []string{"animals", "movies"}
}
func (r *fakeRepo) ThemeCapacity(name string) int {
	count := 0
	for _, c := range r.themes[name] {
		if !c.ExcludedFrom(3) {
			count++
		}
	}
	return count
}

// fakeStore is a race-safe snapshot sink; persist runs on goroutines.
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string]internal.Snapshot
	validated int
	passed    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string]internal.Snapshot)}
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap internal.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.RoomID] = snap
	return nil
}

func (s *fakeStore) LoadSnapshot(_ context.Context, roomID string) (*internal.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot for room %s", ErrNotFound, roomID)
	}
	return &snap, nil
}

func (s *fakeStore) DeleteSnapshot(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, roomID)
	return nil
}

func (s *fakeStore) RecordCardValidated(context.Context, internal.Card, int, int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validated++
	return nil
}

func (s *fakeStore) RecordCardPassed(context.Context, internal.Card, int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passed++
	return nil
}

func newTestGame(t *testing.T, playerCount int) *GameInstance {
	t.Helper()
	g := NewGameInstance("TEST1", newFakeRepo(), newFakeStore(), NopEmitter{})
	g.tickEvery = 20 * time.Millisecond
	for i := 0; i < playerCount; i++ {
		_, err := g.AddPlayer(fmt.Sprintf("player-%d", i), "")
		require.NoError(t, err)
	}
	t.Cleanup(g.Cleanup)
	return g
}

// advanceToRound forces the session into the given round's instruction
// phase, skipping the earlier rounds.
func advanceToRound(t *testing.T, g *GameInstance, round int) {
	t.Helper()
	g.mu.Lock()
	g.currentRound = round
	g.mu.Unlock()
	require.NoError(t, g.InitializeRound())
}

func setTimer(g *GameInstance, seconds int) {
	g.mu.Lock()
	g.timerSeconds = seconds
	g.mu.Unlock()
}

func waitForState(t *testing.T, g *GameInstance, want internal.GameState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.Status().GameState == want
	}, 2*time.Second, time.Millisecond, "expected state %s", want)
}

func TestAddPlayer(t *testing.T) {
	g := newTestGame(t, 0)

	t.Run("adds named player to lobby", func(t *testing.T) {
		player, err := g.AddPlayer("Alice", "conn-1")
		require.NoError(t, err)
		assert.NotEmpty(t, player.Id)
		assert.Equal(t, "Alice", player.Name)
		assert.True(t, player.IsActive)
		assert.Equal(t, "conn-1", player.ConnectionRef)
	})

	t.Run("defaults connection to invite", func(t *testing.T) {
		player, err := g.AddPlayer("Bob", "")
		require.NoError(t, err)
		assert.Equal(t, internal.InviteConnectionRef, player.ConnectionRef)
	})

	t.Run("rejects short name", func(t *testing.T) {
		_, err := g.AddPlayer("A", "conn-2")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("name length counts runes, not bytes", func(t *testing.T) {
		_, err := g.AddPlayer("é", "conn-2")
		assert.ErrorIs(t, err, ErrValidation, "one accented character is still one character")

		player, err := g.AddPlayer("Zoë", "conn-2")
		require.NoError(t, err)
		assert.Equal(t, "Zoë", player.Name)
	})

	t.Run("rejects join outside lobby", func(t *testing.T) {
		require.NoError(t, g.InitializeRound())
		_, err := g.AddPlayer("Carol", "conn-3")
		assert.ErrorIs(t, err, ErrWrongState)
	})
}

func TestRemovePlayer(t *testing.T) {
	g := newTestGame(t, 3)
	victim := g.Status().Players[1]

	require.NoError(t, g.RemovePlayer(victim.Id))
	assert.Len(t, g.Status().Players, 2)

	err := g.RemovePlayer("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustTurnScoreClampsAtZero(t *testing.T) {
	g := newTestGame(t, 1)
	player := g.Status().Players[0]

	require.NoError(t, g.AdjustTurnScore(player.Id, 5))
	got := g.Status().Players[0]
	assert.Equal(t, 5, got.TurnScore)
	assert.Equal(t, 5, got.RoundScore)
	assert.Equal(t, 5, got.Score)

	require.NoError(t, g.AdjustTurnScore(player.Id, -20))
	got = g.Status().Players[0]
	assert.Equal(t, 0, got.TurnScore)
	assert.Equal(t, 0, got.RoundScore)
	assert.Equal(t, 0, got.Score)
}

func TestSelectPersonalTheme(t *testing.T) {
	g := newTestGame(t, 2)
	player := g.Status().Players[0]

	require.NoError(t, g.SelectPersonalTheme(player.Id, "animals"))
	got := g.Status().Players[0]
	require.NotNil(t, got.PersonalCard)
	assert.Equal(t, "animals", got.PersonalCard.Category)
	assert.NotEqual(t, "Quokka", got.PersonalCard.Title, "round-3 excluded cards never become personal cards")

	t.Run("reassignment releases the old card", func(t *testing.T) {
		first := g.Status().Players[0].PersonalCard.Title
		require.NoError(t, g.SelectPersonalTheme(player.Id, "movies"))
		got := g.Status().Players[0]
		assert.Equal(t, "movies", got.PersonalCard.Category)
		g.mu.Lock()
		released := !g.isUsedLocked(first)
		g.mu.Unlock()
		assert.True(t, released, "previous personal card should return to the pool")
	})

	t.Run("unknown theme", func(t *testing.T) {
		err := g.SelectPersonalTheme(player.Id, "geography")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestInitializeRound(t *testing.T) {
	t.Run("enters round instruction and resets players", func(t *testing.T) {
		g := newTestGame(t, 3)
		require.NoError(t, g.InitializeRound())

		status := g.Status()
		assert.Equal(t, internal.StateRoundInstruction, status.GameState)
		for _, p := range status.Players {
			assert.Equal(t, 1, p.RemainingTurns)
			assert.Equal(t, 0, p.TurnScore)
			assert.False(t, p.IsMainPlayer)
		}
		g.mu.Lock()
		assert.Equal(t, -1, g.currentPlayerIndex)
		g.mu.Unlock()
	})

	t.Run("past the last round ends the game", func(t *testing.T) {
		g := newTestGame(t, 2)
		g.mu.Lock()
		g.currentRound = internal.MaxRounds + 1
		g.mu.Unlock()
		require.NoError(t, g.InitializeRound())
		assert.Equal(t, internal.StateGameEnd, g.Status().GameState)
	})

	t.Run("rejected mid-round", func(t *testing.T) {
		g := newTestGame(t, 2)
		require.NoError(t, g.InitializeRound())
		assert.ErrorIs(t, g.InitializeRound(), ErrWrongState)
	})
}

func TestSetupNextPlayerTurn(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())

	status := g.Status()
	assert.Equal(t, internal.StatePlayerInstruction, status.GameState)

	currents, mains := 0, 0
	for _, p := range status.Players {
		if p.IsCurrentPlayer {
			currents++
		}
		if p.IsMainPlayer {
			mains++
		}
	}
	assert.Equal(t, 1, currents, "exactly one current player")
	assert.Equal(t, 1, mains, "exactly one main player")
	assert.Equal(t, status.CurrentPlayer.Id, status.MainPlayer.Id)
}

func TestRoundRotationVisitsEveryPlayer(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.InitializeRound())

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		require.NoError(t, g.SetupNextPlayerTurn())
		status := g.Status()
		require.Equal(t, internal.StatePlayerInstruction, status.GameState)
		seen[status.CurrentPlayer.Id] = true

		// Burn the turn without playing it.
		g.mu.Lock()
		g.logic.endTurn()
		status2 := g.statusLocked()
		g.mu.Unlock()
		require.Equal(t, internal.StatePlayerResult, status2.GameState)
	}
	assert.Len(t, seen, 3, "every player takes a turn")

	require.NoError(t, g.SetupNextPlayerTurn())
	assert.Equal(t, internal.StateRoundEnd, g.Status().GameState)
	g.mu.Lock()
	assert.Equal(t, 2, g.currentRound)
	g.mu.Unlock()
}

func TestStartTurn(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	status := g.Status()
	assert.Equal(t, internal.StatePlaying, status.GameState)
	assert.Equal(t, internal.GameRules[1].Duration, status.TimerSeconds)
	require.NotNil(t, status.CurrentCard)

	t.Run("rejected while already playing", func(t *testing.T) {
		assert.ErrorIs(t, g.StartTurn(), ErrWrongState)
	})
}

// Round 1, three players, two validations, then the clock runs out: the
// player banks two points and owes no more turns.
func TestRoundOneTurnFlow(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	current := g.Status().CurrentPlayer

	require.NoError(t, g.ValidateCard())
	require.NoError(t, g.ValidateCard())
	assert.Equal(t, 2, g.Status().CurrentPlayer.TurnScore)

	t.Run("pass is free and draws a new card", func(t *testing.T) {
		before := g.Status().CurrentCard.Title
		require.NoError(t, g.PassCard())
		status := g.Status()
		assert.Equal(t, 2, status.CurrentPlayer.TurnScore)
		assert.NotEqual(t, before, status.CurrentCard.Title)
	})

	setTimer(g, 1)
	waitForState(t, g, internal.StatePlayerResult)

	var played *internal.Player
	for _, p := range g.Status().Players {
		if p.Id == current.Id {
			played = p
		}
	}
	require.NotNil(t, played)
	assert.Equal(t, 2, played.RoundScore)
	assert.Equal(t, 0, played.RemainingTurns)
}

// Round 2 with remainingTurns at 2: one pass costs three points and the turn
// score is allowed to sit below zero until the turn is folded.
func TestRoundTwoPassPenaltyGoesNegative(t *testing.T) {
	g := newTestGame(t, 2)
	advanceToRound(t, g, 2)
	require.NoError(t, g.SetupNextPlayerTurn())

	g.mu.Lock()
	g.currentPlayerLocked().RemainingTurns = 2
	g.mu.Unlock()

	require.NoError(t, g.StartTurn())
	require.NoError(t, g.PassCard())

	assert.Equal(t, -3, g.Status().CurrentPlayer.TurnScore)

	t.Run("negative turn score clamps to zero at the fold", func(t *testing.T) {
		g.mu.Lock()
		g.logic.endTurn()
		g.mu.Unlock()
		for _, p := range g.Status().Players {
			assert.GreaterOrEqual(t, p.RoundScore, 0)
			assert.GreaterOrEqual(t, p.Score, 0)
		}
	})
}

func TestRoundTwoValidateBanksRemainingClock(t *testing.T) {
	g := newTestGame(t, 2)
	advanceToRound(t, g, 2)
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	current := g.Status().CurrentPlayer

	// Freeze the clock so the banked value is exact; validation is still a
	// legal command while paused.
	require.NoError(t, g.PauseToggle())
	setTimer(g, 17)
	require.NoError(t, g.ValidateCard())

	status := g.Status()
	assert.Equal(t, internal.StatePlayerResult, status.GameState, "validate ends the turn in round 2")
	for _, p := range status.Players {
		if p.Id == current.Id {
			assert.Equal(t, 17, p.RoundScore)
			assert.Equal(t, internal.GameRules[2].MaxTurnsPerPlayer-1, p.RemainingTurns)
		}
	}
}

func setupRoundThree(t *testing.T, g *GameInstance) {
	t.Helper()
	for _, p := range g.Status().Players {
		require.NoError(t, g.SelectPersonalTheme(p.Id, "animals"))
	}
	advanceToRound(t, g, 3)
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())
}

// Round 3, four players, the main player folds on their own sub-turn: the
// turn ends scoreless and the survival bonus is withheld.
func TestRoundThreeMainPlayerFoldsImmediately(t *testing.T) {
	g := newTestGame(t, 4)
	setupRoundThree(t, g)

	status := g.Status()
	main := status.MainPlayer
	require.NotNil(t, main)
	require.Equal(t, main.Id, status.CurrentPlayer.Id, "main player opens their own turn")

	require.NoError(t, g.PassCard())

	status = g.Status()
	assert.Equal(t, internal.StatePlayerResult, status.GameState)
	for _, p := range status.Players {
		if p.Id == main.Id {
			assert.False(t, p.IsActive)
			assert.Equal(t, 0, p.TurnScore)
			assert.Equal(t, 0, p.RoundScore)
		}
	}
}

func TestRoundThreeDeckIsPersonalCard(t *testing.T) {
	g := newTestGame(t, 3)
	setupRoundThree(t, g)

	status := g.Status()
	require.NotNil(t, status.CurrentCard)
	require.NotNil(t, status.MainPlayer.PersonalCard)
	assert.Equal(t, status.MainPlayer.PersonalCard.Title, status.CurrentCard.Title)
}

func TestRoundThreeSubTurnElimination(t *testing.T) {
	g := newTestGame(t, 4)
	setupRoundThree(t, g)
	require.NoError(t, g.PauseToggle())

	main := g.Status().MainPlayer

	// Main player guesses right: the describing role moves off the main
	// player and the clock resets.
	require.NoError(t, g.ValidateCard())
	status := g.Status()
	assert.NotEqual(t, main.Id, status.CurrentPlayer.Id)
	assert.Equal(t, internal.GameRules[3].Duration, status.TimerSeconds)

	// Describer gives up: out for the turn, main's streak grows.
	describer := status.CurrentPlayer
	require.NoError(t, g.PassCard())
	status = g.Status()
	assert.Equal(t, internal.StatePlaying, status.GameState)
	for _, p := range status.Players {
		switch p.Id {
		case describer.Id:
			assert.False(t, p.IsActive)
		case main.Id:
			assert.Equal(t, 1, p.TurnScore)
		}
	}

	// Second describer out; the main player and one describer remain.
	require.NoError(t, g.PassCard())
	assert.Equal(t, internal.StatePlaying, g.Status().GameState)

	// Last describer out: elimination win, survival bonus on top of the
	// streak: 3 passes + 2*4 players = 11.
	require.NoError(t, g.PassCard())
	status = g.Status()
	assert.Equal(t, internal.StatePlayerResult, status.GameState)
	for _, p := range status.Players {
		if p.Id == main.Id {
			assert.True(t, p.IsActive)
			assert.Equal(t, 3+2*4, p.RoundScore)
		}
	}
}

func TestRoundThreeTimeoutChainsSubTurns(t *testing.T) {
	g := newTestGame(t, 4)
	setupRoundThree(t, g)

	main := g.Status().MainPlayer
	require.NoError(t, g.ValidateCard())
	describer := g.Status().CurrentPlayer
	require.NotEqual(t, main.Id, describer.Id)

	// Slow the rearmed clock to a crawl so the chained sub-turn stays put,
	// then let the current countdown run out: same effect as the describer
	// passing, with the countdown rearmed for the next describer.
	g.mu.Lock()
	g.tickEvery = time.Hour
	g.mu.Unlock()
	setTimer(g, 1)
	require.Eventually(t, func() bool {
		status := g.Status()
		if status.GameState != internal.StatePlaying {
			return false
		}
		return status.CurrentPlayer.Id != describer.Id
	}, 2*time.Second, time.Millisecond)

	status := g.Status()
	for _, p := range status.Players {
		switch p.Id {
		case describer.Id:
			assert.False(t, p.IsActive)
		case main.Id:
			assert.Equal(t, 1, p.TurnScore)
		}
	}
	assert.Equal(t, internal.GameRules[3].Duration, status.TimerSeconds,
		"timer rearmed for the next sub-turn")
}

func TestPauseToggle(t *testing.T) {
	g := newTestGame(t, 2)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	require.NoError(t, g.PauseToggle())
	frozen := g.Status().TimerSeconds
	assert.True(t, g.Status().IsPaused)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, g.Status().TimerSeconds, "paused clock must not move")

	require.NoError(t, g.PauseToggle())
	assert.False(t, g.Status().IsPaused)
	require.Eventually(t, func() bool {
		return g.Status().TimerSeconds < frozen
	}, 2*time.Second, time.Millisecond, "resumed clock must tick again")

	t.Run("nothing to pause in lobby", func(t *testing.T) {
		idle := newTestGame(t, 2)
		assert.ErrorIs(t, idle.PauseToggle(), ErrWrongState)
	})
}

func TestTimerMonotonicity(t *testing.T) {
	g := newTestGame(t, 2)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	last := g.Status().TimerSeconds
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		now := g.Status().TimerSeconds
		assert.LessOrEqual(t, now, last, "clock only counts down")
		assert.GreaterOrEqual(t, now, 0, "clock never goes negative")
		last = now
		time.Sleep(2 * time.Millisecond)
	}
}

func TestWrongStateCommands(t *testing.T) {
	g := newTestGame(t, 2)

	assert.ErrorIs(t, g.ValidateCard(), ErrWrongState)
	assert.ErrorIs(t, g.PassCard(), ErrWrongState)
	assert.ErrorIs(t, g.StartTurn(), ErrWrongState)
	assert.ErrorIs(t, g.SetupNextPlayerTurn(), ErrWrongState)
}

func TestRestartGame(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())
	require.NoError(t, g.ValidateCard())

	require.NoError(t, g.RestartGame())

	status := g.Status()
	assert.Equal(t, internal.StateLobby, status.GameState)
	assert.Equal(t, 1, status.CurrentRound)
	assert.Nil(t, status.CurrentCard)
	assert.False(t, status.IsPaused)
	assert.Len(t, status.Players, 3, "roster survives a restart")
	for _, p := range status.Players {
		assert.Zero(t, p.Score)
		assert.Zero(t, p.RoundScore)
		assert.Zero(t, p.TurnScore)
		assert.Nil(t, p.PersonalCard)
		assert.True(t, p.IsActive)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := newTestGame(t, 3)
	require.NoError(t, g.SelectPersonalTheme(g.Status().Players[0].Id, "animals"))
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())
	require.NoError(t, g.ValidateCard())

	snap := g.Snapshot()
	restored := FromSnapshot(&snap, newFakeRepo(), newFakeStore(), NopEmitter{})
	t.Cleanup(restored.Cleanup)

	got := restored.Snapshot()
	assert.Equal(t, snap.RoomID, got.RoomID)
	assert.Equal(t, snap.GameState, got.GameState)
	assert.Equal(t, snap.CurrentRound, got.CurrentRound)
	assert.Equal(t, snap.CurrentPlayerIndex, got.CurrentPlayerIndex)
	assert.Equal(t, snap.TimerSeconds, got.TimerSeconds)
	assert.Equal(t, snap.IsPaused, got.IsPaused)
	assert.Equal(t, snap.Players, got.Players)
	assert.Equal(t, snap.Cards, got.Cards)
	assert.Equal(t, snap.UsedCards, got.UsedCards)
	assert.Equal(t, snap.CurrentCard, got.CurrentCard)

	// The clock does not restart on restore.
	before := restored.Status().TimerSeconds
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, restored.Status().TimerSeconds)
}

// newSmallPoolGame builds a two-player room over a pool of poolSize plain
// cards, small enough to drain inside a single turn.
func newSmallPoolGame(t *testing.T, poolSize int) *GameInstance {
	t.Helper()
	repo := &fakeRepo{themes: make(map[string][]internal.Card)}
	for i := 0; i < poolSize; i++ {
		repo.cards = append(repo.cards, internal.Card{Title: fmt.Sprintf("only-%d", i), Category: "general"})
	}
	g := NewGameInstance("SMALL", repo, newFakeStore(), NopEmitter{})
	t.Cleanup(g.Cleanup)
	for _, name := range []string{"Alice", "Bobby"} {
		_, err := g.AddPlayer(name, "")
		require.NoError(t, err)
	}
	return g
}

// A validation that cannot draw a replacement card must not score: the
// command either applies in full or not at all.
func TestValidateCardExhaustionLeavesScoreUntouched(t *testing.T) {
	g := newSmallPoolGame(t, 5)
	require.NoError(t, g.InitializeRound())
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	// Opening draw took one card; four validations drain the rest.
	for i := 0; i < 4; i++ {
		require.NoError(t, g.ValidateCard())
	}
	status := g.Status()
	require.Equal(t, 4, status.CurrentPlayer.TurnScore)
	lastCard := status.CurrentCard.Title

	err := g.ValidateCard()
	require.ErrorIs(t, err, ErrDeckExhausted)
	status = g.Status()
	assert.Equal(t, 4, status.CurrentPlayer.TurnScore, "no point for a card that could not be replaced")
	assert.Equal(t, lastCard, status.CurrentCard.Title, "current card stays put on a failed draw")
	assert.Equal(t, internal.StatePlaying, status.GameState)
}

func TestPassCardExhaustionSkipsPenalty(t *testing.T) {
	g := newSmallPoolGame(t, 2)
	advanceToRound(t, g, 2)
	require.NoError(t, g.SetupNextPlayerTurn())
	require.NoError(t, g.StartTurn())

	// One card left after the opening draw; the first pass consumes it.
	require.NoError(t, g.PassCard())
	require.Equal(t, -2, g.Status().CurrentPlayer.TurnScore)

	err := g.PassCard()
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.Equal(t, -2, g.Status().CurrentPlayer.TurnScore, "no penalty when the pass could not complete")
}

// The personal card is recorded as used at selection time; drawing it at the
// start of the elimination turn must not record it again.
func TestRoundThreePersonalCardUsedOnce(t *testing.T) {
	g := newTestGame(t, 3)
	setupRoundThree(t, g)

	title := g.Status().MainPlayer.PersonalCard.Title
	g.mu.Lock()
	count := 0
	for _, c := range g.usedCards {
		if c.Title == title {
			count++
		}
	}
	g.mu.Unlock()
	assert.Equal(t, 1, count, "personal card appears once in the used pile")
}

func TestFromSnapshotRebuildsRoundLogic(t *testing.T) {
	for round := 1; round <= internal.MaxRounds; round++ {
		snap := internal.Snapshot{
			RoomID:             "RESTORE",
			GameState:          internal.StateRoundInstruction,
			CurrentRound:       round,
			CurrentPlayerIndex: -1,
		}
		g := FromSnapshot(&snap, newFakeRepo(), newFakeStore(), NopEmitter{})
		assert.Equal(t, internal.GameRules[round].Duration, g.logic.duration(),
			"round %d logic restored", round)
	}
}
