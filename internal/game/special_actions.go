// internal/game/special_actions.go
package game

import (
	"time"
)

// Reveal is one target letter disclosed by a letter reveal.
type Reveal struct {
	Position int    `json:"position"`
	Letter   string `json:"letter"`
}

// SnipeResult answers a letter snipe.
type SnipeResult struct {
	Letter  string `json:"letter"`
	Present bool   `json:"present"`
}

// ItemOutcome is returned to the player who used an item.
type ItemOutcome struct {
	Item     ItemID          `json:"item"`
	TargetID string          `json:"targetId,omitempty"`
	Outcome  SabotageOutcome `json:"outcome,omitempty"`
	LandedOn string          `json:"landedOn,omitempty"`
	Reveal   *Reveal         `json:"reveal,omitempty"`
	Snipe    *SnipeResult    `json:"snipe,omitempty"`
	BonusMs  int64           `json:"bonusMs,omitempty"`
}

// UseItem spends one held item. Every check runs before the inventory changes, so a
// rejected use leaves no trace and an accepted use always applies its effect.
func (r *Room) UseItem(connID string, itemID ItemID, targetID string) (*ItemOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, item, err := r.checkItemUnsafe(connID, itemID)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()

	switch {
	case item.ID == ItemLetterSnipe:
		return nil, ErrInvalidLetter.withMessage("letter snipe needs a letter")
	case item.Category == CategorySabotage:
		return r.sabotageUnsafe(p, item, targetID, now)
	}

	out := &ItemOutcome{Item: item.ID}
	switch item.ID {
	case ItemLetterReveal:
		if p.Solved {
			return nil, ErrSolved
		}
		if p.UsedItemThisRound {
			return nil, ErrItemLimit
		}
		rev, ok := r.pickRevealUnsafe(p)
		if !ok {
			return nil, ErrNoReveal
		}
		p.removeItem(item.ID)
		p.UsedItemThisRound = true
		p.Revealed[rev.Position] = rev.Letter
		out.Reveal = &rev
	case ItemTimeBonus:
		if p.finished() {
			return nil, ErrSolved
		}
		p.removeItem(item.ID)
		p.BonusMs += timeBonusAmount.Milliseconds()
		out.BonusMs = p.BonusMs
	case ItemShield, ItemMirrorShield:
		p.removeItem(item.ID)
		p.applyEffect(ActiveEffect{Kind: item.ID, SourceID: p.ID, ExpiresAt: now.Add(item.Duration)})
	default:
		return nil, ErrUnknownItem
	}

	r.announceItemUnsafe(p, item.ID, "")
	r.syncAllUnsafe()
	return out, nil
}

// LetterSnipe spends a letter snipe to learn whether letter is in the word.
func (r *Room) LetterSnipe(connID, letter string) (*ItemOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(letter) != 1 || letterIndex(upper(letter[0])) < 0 {
		return nil, ErrInvalidLetter
	}
	p, item, err := r.checkItemUnsafe(connID, ItemLetterSnipe)
	if err != nil {
		return nil, err
	}
	if p.Solved {
		return nil, ErrSolved
	}
	if p.UsedItemThisRound {
		return nil, ErrItemLimit
	}
	l := upper(letter[0])
	present := false
	for i := 0; i < len(r.target); i++ {
		if r.target[i] == l {
			present = true
			break
		}
	}

	p.removeItem(item.ID)
	p.UsedItemThisRound = true
	r.announceItemUnsafe(p, item.ID, "")
	r.syncAllUnsafe()
	return &ItemOutcome{Item: item.ID, Snipe: &SnipeResult{Letter: string(l), Present: present}}, nil
}

// checkItemUnsafe runs the gates shared by every item.
func (r *Room) checkItemUnsafe(connID string, id ItemID) (*Player, Item, error) {
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return nil, Item{}, ErrPlayerNotFound
	}
	if !r.settings.PowerUpsEnabled || r.state != StatePlaying {
		return nil, Item{}, ErrWrongState
	}
	if p.Eliminated {
		return nil, Item{}, ErrEliminated
	}
	item, ok := LookupItem(id)
	if !ok {
		return nil, Item{}, ErrUnknownItem
	}
	if !p.hasItem(id) {
		return nil, Item{}, ErrItemNotHeld
	}
	return p, item, nil
}

// sabotageUnsafe resolves an attack on targetID through its defences.
func (r *Room) sabotageUnsafe(p *Player, item Item, targetID string, now time.Time) (*ItemOutcome, error) {
	target := r.playerByIDUnsafe(targetID)
	if target == nil {
		return nil, ErrTargetNotFound
	}
	if target == p || target.Eliminated {
		return nil, ErrInvalidTarget
	}
	if target.finished() {
		return nil, ErrTargetDone
	}

	p.removeItem(item.ID)
	outcome, victim := resolveSabotage(p, target, item, now, r.rng)
	out := &ItemOutcome{Item: item.ID, TargetID: target.ID, Outcome: outcome}
	payload := SabotagePayload{Item: item.ID, FromID: p.ID, TargetID: target.ID, Outcome: outcome}
	if victim != nil {
		out.LandedOn = victim.ID
		if e, ok := victim.Effects[item.ID]; ok {
			cp := *e
			payload.Effect = &cp
			payload.ExpiresAt = unixMs(e.ExpiresAt)
		}
	}

	r.announceItemUnsafe(p, item.ID, target.ID)
	switch outcome {
	case OutcomeApplied:
		r.sendUnsafe(target, Event{Type: EventSabotaged, Payload: payload})
	case OutcomeShieldBlocked:
		r.sendUnsafe(p, Event{Type: EventShieldBlocked, Payload: payload})
		r.sendUnsafe(target, Event{Type: EventShieldProtected, Payload: payload})
	case OutcomeReflected:
		r.sendUnsafe(p, Event{Type: EventMirrorReflected, Payload: payload})
		r.sendUnsafe(p, Event{Type: EventSabotaged, Payload: payload})
		r.sendUnsafe(target, Event{Type: EventMirrorProtected, Payload: payload})
	case OutcomeMirrorBlocked:
		r.sendUnsafe(p, Event{Type: EventShieldBlocked, Payload: payload})
		r.sendUnsafe(target, Event{Type: EventMirrorProtected, Payload: payload})
	}
	r.logger.Debugf("%s used %s on %s: %s", p.Name, item.ID, target.Name, outcome)
	r.syncAllUnsafe()
	return out, nil
}

func (r *Room) announceItemUnsafe(p *Player, id ItemID, targetID string) {
	r.broadcastUnsafe(Event{Type: EventItemUsed, Payload: map[string]interface{}{
		"playerId": p.ID,
		"item":     id,
		"targetId": targetID,
	}})
	r.sendUnsafe(p, Event{Type: EventInventoryUpdate, Payload: map[string]interface{}{"inventory": p.Inventory}})
}

// pickRevealUnsafe chooses a random position the player has neither revealed nor
// already placed correctly.
func (r *Room) pickRevealUnsafe(p *Player) (Reveal, bool) {
	known := make(map[int]bool, len(r.target))
	for pos := range p.Revealed {
		known[pos] = true
	}
	for _, g := range p.Guesses {
		for i, s := range g.Result {
			if s == StatusCorrect {
				known[i] = true
			}
		}
	}
	var open []int
	for i := 0; i < len(r.target); i++ {
		if !known[i] {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		return Reveal{}, false
	}
	pos := open[r.rng.Intn(len(open))]
	return Reveal{Position: pos, Letter: string(r.target[pos])}, true
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
