package game

import (
	"context"
	"log"
	"time"

	"github.com/patpanic/patpanic-backend/internal"
)

// startTimerLocked replaces any running countdown with a fresh one. Each
// start mints a new context; the goroutine compares its own context against
// the session's current one on every tick so a superseded timer dies silently
// instead of double-decrementing.
func (g *GameInstance) startTimerLocked() {
	g.stopTimerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	g.timerCtx = ctx
	g.timerStop = cancel
	go g.runTimer(ctx, g.tickEvery)
}

// stopTimerLocked cancels the running countdown. Idempotent.
func (g *GameInstance) stopTimerLocked() {
	if g.timerStop != nil {
		g.timerStop()
		g.timerStop = nil
		g.timerCtx = nil
	}
}

func (g *GameInstance) runTimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !g.tick(ctx) {
				return
			}
		}
	}
}

// tick decrements the countdown by one second and runs the round's timeout
// handler at zero. Returns false once this timer generation is done.
func (g *GameInstance) tick(ctx context.Context) bool {
	g.mu.Lock()
	if g.timerCtx != ctx {
		// A newer timer owns the clock now.
		g.mu.Unlock()
		return false
	}
	g.timerSeconds--
	if g.timerSeconds < 0 {
		g.timerSeconds = 0
	}
	secondsLeft := g.timerSeconds

	if secondsLeft > 0 {
		g.mu.Unlock()
		g.emitter.EmitTimerUpdate(g.RoomID, secondsLeft)
		return true
	}

	log.Printf("[tick] room=%s: timer expired", g.RoomID)
	g.stopTimerLocked()
	g.logic.handleTimerEnd()

	// Round three chains sub-turns: if the timeout handler left the session
	// in play, rearm the clock for the next describer.
	if g.state == internal.StatePlaying {
		g.timerSeconds = g.logic.duration()
		g.startTimerLocked()
	}

	status := g.statusLocked()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.emitter.EmitTimerUpdate(g.RoomID, secondsLeft)
	g.emitter.EmitStatus(g.RoomID, status)
	g.persist(snap)
	return false
}
