// internal/game/timers.go
package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const tickInterval = time.Second

// phaseTimers owns every timer of a room's current phase. reset cancels all of them
// and bumps the epoch; callbacks compare their captured epoch under the room lock and
// do nothing once the phase has moved on.
type phaseTimers struct {
	clock  clockwork.Clock
	epoch  uint64
	cancel []func()
}

// reset stops all timers of the current phase. Calling it twice is harmless.
func (t *phaseTimers) reset() {
	for _, c := range t.cancel {
		c()
	}
	t.cancel = nil
	t.epoch++
}

// active reports how many timers the current phase holds.
func (t *phaseTimers) active() int { return len(t.cancel) }

// everyUnsafe calls fn under the room lock every interval until the phase changes.
// Caller must hold r.mu.
func (r *Room) everyUnsafe(interval time.Duration, fn func(now time.Time)) {
	epoch := r.timers.epoch
	ticker := r.clock.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once
	r.timers.cancel = append(r.timers.cancel, func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				r.mu.Lock()
				if r.closed || r.timers.epoch != epoch {
					r.mu.Unlock()
					return
				}
				// ticks can be coalesced, so read the clock rather than the tick
				fn(r.clock.Now())
				r.mu.Unlock()
			}
		}
	}()
}

// countdownUnsafe broadcasts kind once per second for seconds seconds, then calls done.
func (r *Room) countdownUnsafe(kind EventType, seconds int, preview *Challenge, done func(now time.Time)) {
	r.timers.reset()
	r.countdownLeft = seconds
	if seconds <= 0 {
		done(r.clock.Now())
		return
	}
	r.broadcastCountdownUnsafe(kind, preview)
	r.everyUnsafe(tickInterval, func(now time.Time) {
		r.countdownLeft--
		if r.countdownLeft <= 0 {
			done(now)
			return
		}
		r.broadcastCountdownUnsafe(kind, preview)
	})
}

func (r *Room) broadcastCountdownUnsafe(kind EventType, preview *Challenge) {
	r.broadcastUnsafe(Event{Type: kind, Payload: CountdownPayload{
		Seconds: r.countdownLeft,
		Round:   r.round + 1,
		Preview: preview,
	}})
}

// tickRoundUnsafe is the round clock: decays bonus time once the base clock is out,
// sweeps expired effects, publishes per-player time, and re-checks round over.
func (r *Room) tickRoundUnsafe(now time.Time) {
	if r.state != StatePlaying {
		return
	}
	from := r.lastTick
	if from.Before(r.roundEndsAt) {
		from = r.roundEndsAt
	}
	if now.After(from) {
		decay := now.Sub(from).Milliseconds()
		for _, p := range r.activePlayersUnsafe() {
			if p.finished() || p.BonusMs <= 0 {
				continue
			}
			p.BonusMs = maxInt64(0, p.BonusMs-decay)
		}
	}
	r.lastTick = now

	r.sweepEffectsUnsafe(now)

	payload := TimerPayload{
		RemainingMs: maxInt64(0, r.roundEndsAt.Sub(now).Milliseconds()),
		Players:     make(map[string]int64, len(r.players)),
	}
	for _, p := range r.activePlayersUnsafe() {
		payload.Players[p.ID] = r.personalRemainingUnsafe(p, now)
	}
	r.broadcastUnsafe(Event{Type: EventTimerUpdate, Payload: payload})

	r.checkRoundOverUnsafe(now)
}

func (r *Room) sweepEffectsUnsafe(now time.Time) {
	for _, p := range r.players {
		expired := p.sweepEffects(now)
		if len(expired) == 0 {
			continue
		}
		for _, kind := range expired {
			r.sendUnsafe(p, Event{Type: EventEffectExpired, Payload: map[string]interface{}{
				"kind": kind,
			}})
		}
		r.syncPlayerUnsafe(p)
	}
}

// personalRemainingUnsafe is the base clock plus the player's bonus time, in ms.
func (r *Room) personalRemainingUnsafe(p *Player, now time.Time) int64 {
	base := maxInt64(0, r.roundEndsAt.Sub(now).Milliseconds())
	return base + p.BonusMs
}
