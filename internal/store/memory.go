package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/patpanic/patpanic-backend/internal"
	"github.com/patpanic/patpanic-backend/internal/game"
)

// MemoryStore keeps snapshots in a map. Used when no database is configured
// and as the store in tests; snapshots survive room eviction but not a
// process restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]internal.Snapshot
	validated map[string]int
	passed    map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]internal.Snapshot),
		validated: make(map[string]int),
		passed:    make(map[string]int),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap internal.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.RoomID] = snap
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, roomID string) (*internal.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot for room %s", game.ErrNotFound, roomID)
	}
	return &snap, nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, roomID)
	return nil
}

func (s *MemoryStore) RecordCardValidated(_ context.Context, card internal.Card, round, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validated[statKey(card.Title, round)]++
	return nil
}

func (s *MemoryStore) RecordCardPassed(_ context.Context, card internal.Card, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passed[statKey(card.Title, round)]++
	return nil
}

// ValidatedCount reports how often a card was validated in a round.
func (s *MemoryStore) ValidatedCount(title string, round int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validated[statKey(title, round)]
}

// PassedCount reports how often a card was passed in a round.
func (s *MemoryStore) PassedCount(title string, round int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passed[statKey(title, round)]
}

func statKey(title string, round int) string {
	return fmt.Sprintf("%s|%d", title, round)
}
