package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patpanic/patpanic-backend/internal"
	"github.com/patpanic/patpanic-backend/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	room_id TEXT PRIMARY KEY,
	game_state TEXT NOT NULL,
	current_round INTEGER NOT NULL,
	current_player_index INTEGER NOT NULL,
	is_paused BOOLEAN NOT NULL,
	timer INTEGER NOT NULL,
	players JSONB NOT NULL,
	current_card JSONB,
	used_cards JSONB NOT NULL,
	cards JSONB NOT NULL,
	last_activity TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_game_snapshots_updated_at ON game_snapshots(updated_at);

CREATE TABLE IF NOT EXISTS card_usage_stats (
	card_title TEXT NOT NULL,
	card_category TEXT NOT NULL,
	round_number INTEGER NOT NULL,
	times_validated INTEGER NOT NULL DEFAULT 0,
	times_passed INTEGER NOT NULL DEFAULT 0,
	total_appearances INTEGER NOT NULL DEFAULT 0,
	average_time_to_validate DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_used TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (card_title, round_number)
);

CREATE INDEX IF NOT EXISTS idx_card_usage_category ON card_usage_stats(card_category);
`

// CardStats is one analytics row for a card within a round.
type CardStats struct {
	CardTitle            string    `json:"cardTitle"`
	CardCategory         string    `json:"cardCategory"`
	RoundNumber          int       `json:"roundNumber"`
	TimesValidated       int       `json:"timesValidated"`
	TimesPassed          int       `json:"timesPassed"`
	TotalAppearances     int       `json:"totalAppearances"`
	AvgSecondsToValidate float64   `json:"avgSecondsToValidate"`
	LastUsed             time.Time `json:"lastUsed"`
}

// PostgresStore persists session snapshots for crash recovery and card usage
// counters for analytics.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	log.Printf("[NewPostgresStore] schema ready")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// SaveSnapshot upserts the room's snapshot, keeping the original created_at
// across overwrites.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap internal.Snapshot) error {
	players, err := json.Marshal(snap.Players)
	if err != nil {
		return fmt.Errorf("marshaling players: %w", err)
	}
	usedCards, err := json.Marshal(snap.UsedCards)
	if err != nil {
		return fmt.Errorf("marshaling used cards: %w", err)
	}
	cards, err := json.Marshal(snap.Cards)
	if err != nil {
		return fmt.Errorf("marshaling cards: %w", err)
	}
	var currentCard []byte
	if snap.CurrentCard != nil {
		currentCard, err = json.Marshal(snap.CurrentCard)
		if err != nil {
			return fmt.Errorf("marshaling current card: %w", err)
		}
	}

	now := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_snapshots (
			room_id, game_state, current_round, current_player_index,
			is_paused, timer, players, current_card, used_cards, cards,
			last_activity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (room_id) DO UPDATE SET
			game_state = EXCLUDED.game_state,
			current_round = EXCLUDED.current_round,
			current_player_index = EXCLUDED.current_player_index,
			is_paused = EXCLUDED.is_paused,
			timer = EXCLUDED.timer,
			players = EXCLUDED.players,
			current_card = EXCLUDED.current_card,
			used_cards = EXCLUDED.used_cards,
			cards = EXCLUDED.cards,
			last_activity = EXCLUDED.last_activity,
			updated_at = EXCLUDED.updated_at`,
		snap.RoomID, string(snap.GameState), snap.CurrentRound, snap.CurrentPlayerIndex,
		snap.IsPaused, snap.TimerSeconds, players, currentCard, usedCards, cards,
		snap.LastActivity, now)
	if err != nil {
		return fmt.Errorf("saving snapshot for room %s: %w", snap.RoomID, err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot for a room, or
// game.ErrNotFound when none exists.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, roomID string) (*internal.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT game_state, current_round, current_player_index, is_paused,
		       timer, players, current_card, used_cards, cards,
		       last_activity, created_at, updated_at
		FROM game_snapshots WHERE room_id = $1`, roomID)

	snap := internal.Snapshot{RoomID: roomID}
	var (
		gameState   string
		players     []byte
		currentCard []byte
		usedCards   []byte
		cards       []byte
	)
	err := row.Scan(&gameState, &snap.CurrentRound, &snap.CurrentPlayerIndex, &snap.IsPaused,
		&snap.TimerSeconds, &players, &currentCard, &usedCards, &cards,
		&snap.LastActivity, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("%w: snapshot for room %s", game.ErrNotFound, roomID)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("loading snapshot for room %s: %w", roomID, err)
		}
	}

	snap.GameState = internal.GameState(gameState)
	if err := json.Unmarshal(players, &snap.Players); err != nil {
		return nil, fmt.Errorf("unmarshaling players for room %s: %w", roomID, err)
	}
	if len(currentCard) > 0 {
		snap.CurrentCard = &internal.Card{}
		if err := json.Unmarshal(currentCard, snap.CurrentCard); err != nil {
			return nil, fmt.Errorf("unmarshaling current card for room %s: %w", roomID, err)
		}
	}
	if err := json.Unmarshal(usedCards, &snap.UsedCards); err != nil {
		return nil, fmt.Errorf("unmarshaling used cards for room %s: %w", roomID, err)
	}
	if err := json.Unmarshal(cards, &snap.Cards); err != nil {
		return nil, fmt.Errorf("unmarshaling cards for room %s: %w", roomID, err)
	}
	return &snap, nil
}

func (s *PostgresStore) DeleteSnapshot(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM game_snapshots WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("deleting snapshot for room %s: %w", roomID, err)
	}
	return nil
}

// ActiveRooms lists rooms with a snapshot updated within maxAge that have
// not reached game end, newest first. Used for recovery on restart.
func (s *PostgresStore) ActiveRooms(ctx context.Context, maxAge time.Duration) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id FROM game_snapshots
		WHERE updated_at > $1 AND game_state != $2
		ORDER BY updated_at DESC`,
		time.Now().Add(-maxAge), string(internal.StateGameEnd))
	if err != nil {
		return nil, fmt.Errorf("listing active rooms: %w", err)
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, id)
	}
	return roomIDs, rows.Err()
}

// RecordCardValidated bumps the validation counters for a card in a round
// and folds the elapsed seconds into the running average.
func (s *PostgresStore) RecordCardValidated(ctx context.Context, card internal.Card, round, elapsedSeconds int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO card_usage_stats (
			card_title, card_category, round_number,
			times_validated, times_passed, total_appearances,
			average_time_to_validate, last_used
		) VALUES ($1, $2, $3, 1, 0, 1, $4, $5)
		ON CONFLICT (card_title, round_number) DO UPDATE SET
			times_validated = card_usage_stats.times_validated + 1,
			total_appearances = card_usage_stats.total_appearances + 1,
			average_time_to_validate =
				(card_usage_stats.average_time_to_validate * card_usage_stats.times_validated + $4)
				/ (card_usage_stats.times_validated + 1),
			last_used = $5`,
		card.Title, card.Category, round, float64(elapsedSeconds), time.Now())
	if err != nil {
		return fmt.Errorf("recording validation for card %q: %w", card.Title, err)
	}
	return nil
}

// RecordCardPassed bumps the pass counters for a card in a round.
func (s *PostgresStore) RecordCardPassed(ctx context.Context, card internal.Card, round int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO card_usage_stats (
			card_title, card_category, round_number,
			times_validated, times_passed, total_appearances,
			average_time_to_validate, last_used
		) VALUES ($1, $2, $3, 0, 1, 1, 0, $4)
		ON CONFLICT (card_title, round_number) DO UPDATE SET
			times_passed = card_usage_stats.times_passed + 1,
			total_appearances = card_usage_stats.total_appearances + 1,
			last_used = $4`,
		card.Title, card.Category, round, time.Now())
	if err != nil {
		return fmt.Errorf("recording pass for card %q: %w", card.Title, err)
	}
	return nil
}

// CardStats returns analytics rows ordered by validation count. Zero values
// for category, round or limit mean no filter.
func (s *PostgresStore) CardStats(ctx context.Context, category string, round, limit int) ([]CardStats, error) {
	query := `
		SELECT card_title, card_category, round_number, times_validated,
		       times_passed, total_appearances, average_time_to_validate, last_used
		FROM card_usage_stats WHERE 1=1`
	args := []any{}

	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND card_category = $%d", len(args))
	}
	if round > 0 {
		args = append(args, round)
		query += fmt.Sprintf(" AND round_number = $%d", len(args))
	}
	query += " ORDER BY times_validated DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying card stats: %w", err)
	}
	defer rows.Close()

	var stats []CardStats
	for rows.Next() {
		var st CardStats
		if err := rows.Scan(&st.CardTitle, &st.CardCategory, &st.RoundNumber,
			&st.TimesValidated, &st.TimesPassed, &st.TotalAppearances,
			&st.AvgSecondsToValidate, &st.LastUsed); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
