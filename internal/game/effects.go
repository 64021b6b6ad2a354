// internal/game/effects.go
package game

import (
	"math/rand"
	"time"
)

// ActiveEffect is a timed effect on a player. A player holds at most one effect per kind.
type ActiveEffect struct {
	Kind      ItemID      `json:"kind"`
	SourceID  string      `json:"sourceId,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SabotageOutcome describes what happened to an incoming sabotage.
type SabotageOutcome string

const (
	OutcomeApplied       SabotageOutcome = "applied"
	OutcomeShieldBlocked SabotageOutcome = "shield_blocked"
	OutcomeReflected     SabotageOutcome = "reflected"
	OutcomeMirrorBlocked SabotageOutcome = "mirror_blocked"
)

const qwerty = "QWERTYUIOPASDFGHJKLZXCVBNM"

func (p *Player) applyEffect(e ActiveEffect) {
	if p.Effects == nil {
		p.Effects = make(map[ItemID]*ActiveEffect)
	}
	p.Effects[e.Kind] = &e
}

func (p *Player) hasEffect(kind ItemID, now time.Time) bool {
	e, ok := p.Effects[kind]
	return ok && now.Before(e.ExpiresAt)
}

func (p *Player) consumeEffect(kind ItemID) {
	delete(p.Effects, kind)
}

// sweepEffects removes expired effects and returns their kinds.
func (p *Player) sweepEffects(now time.Time) []ItemID {
	var expired []ItemID
	for kind, e := range p.Effects {
		if !now.Before(e.ExpiresAt) {
			expired = append(expired, kind)
			delete(p.Effects, kind)
		}
	}
	return expired
}

func (p *Player) clearTimedEffects() {
	for kind := range p.Effects {
		delete(p.Effects, kind)
	}
}

// activeEffects returns a stable list for views.
func (p *Player) activeEffects(now time.Time) []ActiveEffect {
	out := make([]ActiveEffect, 0, len(p.Effects))
	for _, it := range catalog {
		if e, ok := p.Effects[it.ID]; ok && now.Before(e.ExpiresAt) {
			out = append(out, *e)
		}
	}
	return out
}

// resolveSabotage routes an attack through the target's defences. At most one defence
// is consumed: a plain shield takes precedence over a mirror shield. The returned player
// is whoever the effect landed on, or nil when it was blocked.
func resolveSabotage(attacker, target *Player, item Item, now time.Time, rng *rand.Rand) (SabotageOutcome, *Player) {
	switch {
	case target.hasEffect(ItemShield, now):
		target.consumeEffect(ItemShield)
		return OutcomeShieldBlocked, nil
	case target.hasEffect(ItemMirrorShield, now):
		target.consumeEffect(ItemMirrorShield)
		if !item.Reflectable {
			return OutcomeMirrorBlocked, nil
		}
		landSabotage(attacker, target.ID, item, now, rng)
		return OutcomeReflected, attacker
	default:
		landSabotage(target, attacker.ID, item, now, rng)
		return OutcomeApplied, target
	}
}

// landSabotage applies item to victim with no defence checks.
func landSabotage(victim *Player, sourceID string, item Item, now time.Time, rng *rand.Rand) {
	switch item.ID {
	case ItemAmnesia:
		// permanent for the round: nothing to expire
		victim.hintFloor = len(victim.Guesses)
	case ItemKeyboardShuffle:
		victim.applyEffect(ActiveEffect{
			Kind:      item.ID,
			SourceID:  sourceID,
			ExpiresAt: now.Add(item.Duration),
			Payload:   shuffledKeyboard(rng),
		})
	default:
		victim.applyEffect(ActiveEffect{
			Kind:      item.ID,
			SourceID:  sourceID,
			ExpiresAt: now.Add(item.Duration),
		})
	}
}

func shuffledKeyboard(rng *rand.Rand) string {
	b := []byte(qwerty)
	rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	return string(b)
}
