package game

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
)

// Registry owns the per-room sessions. Room codes are case-insensitive; the
// uppercased code is the key. A single background sweep evicts rooms whose
// lastActivity is older than the TTL. There is exactly one Registry per
// process, threaded explicitly through the transport layer.
type Registry struct {
	mu    sync.Mutex
	games map[string]*GameInstance

	roomTTL time.Duration
	repo    CardRepository
	store   SnapshotStore
	emitter EventEmitter

	sweepStop context.CancelFunc
}

func NewRegistry(roomTTL time.Duration, repo CardRepository, store SnapshotStore, emitter EventEmitter) *Registry {
	r := &Registry{
		games:   make(map[string]*GameInstance),
		roomTTL: roomTTL,
		repo:    repo,
		store:   store,
		emitter: emitter,
	}
	if roomTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		r.sweepStop = cancel
		go r.sweepLoop(ctx)
	}
	return r
}

// Get returns the session for a room code, creating it on first use. A
// persisted snapshot for the code, if one exists, is restored instead of
// starting a fresh lobby. Concurrent callers for the same code get the same
// instance.
func (r *Registry) Get(roomID string) *GameInstance {
	key := strings.ToUpper(strings.TrimSpace(roomID))

	r.mu.Lock()
	if g, ok := r.games[key]; ok {
		r.mu.Unlock()
		return g
	}
	r.mu.Unlock()

	// Restore or create without the registry lock: a slow snapshot load for
	// one room must not stall Get for every other room.
	g := r.restoreOrCreate(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.games[key]; ok {
		// Another caller raced us here; theirs won. Ours never started a
		// timer, so there is nothing to tear down.
		return existing
	}
	r.games[key] = g
	return g
}

func (r *Registry) restoreOrCreate(key string) *GameInstance {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if snap, err := r.store.LoadSnapshot(ctx, key); err == nil && snap != nil {
		return FromSnapshot(snap, r.repo, r.store, r.emitter)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("[Get] room=%s: snapshot load failed, starting fresh: %v", key, err)
	}
	log.Printf("[Get] room=%s: created new session", key)
	return NewGameInstance(key, r.repo, r.store, r.emitter)
}

// Peek returns the session only if the room already exists in memory.
func (r *Registry) Peek(roomID string) (*GameInstance, bool) {
	key := strings.ToUpper(strings.TrimSpace(roomID))
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[key]
	return g, ok
}

// Rooms lists the codes of all live sessions.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.games))
	for id := range r.games {
		out = append(out, id)
	}
	return out
}

// CloseRoom tears a room down on purpose: timer stopped, snapshot deleted,
// session dropped from the map.
func (r *Registry) CloseRoom(roomID string) {
	key := strings.ToUpper(strings.TrimSpace(roomID))

	r.mu.Lock()
	g, ok := r.games[key]
	if ok {
		delete(r.games, key)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	g.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.DeleteSnapshot(ctx, key); err != nil {
		log.Printf("[CloseRoom] room=%s: snapshot delete failed: %v", key, err)
	}
	log.Printf("[CloseRoom] room=%s: closed", key)
}

// Close stops the sweep loop and tears down every live session.
func (r *Registry) Close() {
	if r.sweepStop != nil {
		r.sweepStop()
	}
	r.mu.Lock()
	games := make([]*GameInstance, 0, len(r.games))
	for id, g := range r.games {
		games = append(games, g)
		delete(r.games, id)
	}
	r.mu.Unlock()

	for _, g := range games {
		g.Cleanup()
	}
	log.Printf("[Close] registry shut down, %d sessions released", len(games))
}

// sweepLoop evicts rooms idle for longer than the TTL. Evicted rooms lose
// their snapshot too: inactivity is abandonment, not a crash.
func (r *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.roomTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.roomTTL)

	var stale []string
	r.mu.Lock()
	for id, g := range r.games {
		if g.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		log.Printf("[sweep] room=%s: idle past TTL, evicting", id)
		r.CloseRoom(id)
	}
}
