// internal/game/rejoin.go
package game

import (
	"time"
)

// Verdict is the outcome of resolving a join or rejoin request.
type Verdict int

const (
	// VerdictReject refuses the request: the game is in progress and nothing matches.
	VerdictReject Verdict = iota
	// VerdictRestore brings back a grace-window snapshot.
	VerdictRestore
	// VerdictTransplant moves a live player onto the new connection, evicting the old one.
	VerdictTransplant
	// VerdictFreshJoin adds a new player.
	VerdictFreshJoin
)

func (v Verdict) String() string {
	switch v {
	case VerdictRestore:
		return "restore"
	case VerdictTransplant:
		return "transplant"
	case VerdictFreshJoin:
		return "fresh_join"
	default:
		return "reject"
	}
}

// Presence is everything known about a requester at the moment of a (re)join.
type Presence struct {
	Snapshot    bool // an unexpired disconnect snapshot exists for the token
	LiveByToken bool // a connected player already holds the token
	LiveByName  bool // a connected player already holds the name
	InLobby     bool
	Rejoin      bool // the request is a rejoin, not a first join
}

// Admission is a join or rejoin request.
type Admission struct {
	Name   string
	Token  string
	ConnID string
	// Rejoin marks stale-connection recovery; only then may a live player be matched by name.
	Rejoin bool
}

// Departure is the snapshot kept for a disconnected player.
type Departure struct {
	Player     *Player
	Code       string
	Index      int
	WasHost    bool
	DepartedAt time.Time
}

// Admitted reports how a request was satisfied.
type Admitted struct {
	Player  *Player
	Verdict Verdict
	// EvictedConn is the stale connection a transplant replaced.
	EvictedConn string
}

// Admit resolves a (re)join under the room lock. snap is the requester's grace-window
// snapshot, if any; resolve picks the path from what the room currently holds.
func (r *Room) Admit(adm Admission, snap *Departure, resolve func(Presence) Verdict) (*Admitted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	name, ok := validName(adm.Name)
	if !ok && snap == nil {
		return nil, ErrInvalidName
	}
	if adm.Token == "" {
		return nil, ErrInvalidToken
	}

	byToken := r.playerByTokenUnsafe(adm.Token)
	var byName *Player
	if ok {
		byName = r.playerByNameUnsafe(name)
	}
	verdict := resolve(Presence{
		Snapshot:    snap != nil,
		LiveByToken: byToken != nil,
		LiveByName:  byName != nil,
		InLobby:     r.state == StateLobby,
		Rejoin:      adm.Rejoin,
	})

	switch verdict {
	case VerdictRestore:
		p := r.restoreUnsafe(snap, adm.ConnID)
		return &Admitted{Player: p, Verdict: verdict}, nil
	case VerdictTransplant:
		live := byToken
		if live == nil {
			if !adm.Rejoin || byName == nil {
				return nil, ErrNameTaken
			}
			live = byName
		}
		evicted := live.ConnID
		live.ConnID = adm.ConnID
		live.Token = adm.Token
		live.Connected = true
		r.logger.Infof("player %s moved to a new connection", live.Name)
		r.syncAllUnsafe()
		return &Admitted{Player: live, Verdict: verdict, EvictedConn: evicted}, nil
	case VerdictFreshJoin:
		p, err := r.addPlayerUnsafe(adm.Name, adm.Token, adm.ConnID)
		if err != nil {
			return nil, err
		}
		r.announceJoinUnsafe(p, false)
		return &Admitted{Player: p, Verdict: verdict}, nil
	default:
		if byName != nil && byToken == nil {
			return nil, ErrNameTaken
		}
		return nil, ErrInProgress
	}
}

// restoreUnsafe puts a snapshot back at its old seat. In the lobby the player comes
// back clean; mid-game their board is kept unless a round boundary passed, in which
// case the missed round is forfeited.
func (r *Room) restoreUnsafe(snap *Departure, connID string) *Player {
	p := snap.Player
	p.ConnID = connID
	p.Connected = true
	r.dropAbsentUnsafe(p)
	switch {
	case r.state == StateLobby:
		p.resetForLobby()
		p.Ready = false
	case p.Round != r.round:
		p.resetRound(r.round)
	}

	idx := snap.Index
	if idx < 0 || idx > len(r.players) {
		idx = len(r.players)
	}
	r.players = append(r.players, nil)
	copy(r.players[idx+1:], r.players[idx:])
	r.players[idx] = p

	if snap.WasHost || len(r.players) == 1 {
		r.hostID = p.ID
	}
	if r.isHostUnsafe(p) {
		p.Ready = true
	}
	r.logger.Infof("player %s restored", p.Name)
	r.announceJoinUnsafe(p, true)
	return p
}

// Disconnect removes the player on connID and returns the snapshot to hold for the
// grace window. The round-over check runs since an absent player can no longer finish.
func (r *Room) Disconnect(connID string) (*Departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	index, wasHost := r.removePlayerUnsafe(p)
	if r.settings.Mode == ModeBattleRoyale && r.state != StateLobby && r.state != StateGameEnd && !p.Eliminated {
		r.absent = append(r.absent, p)
	}
	p.Connected = false
	p.ConnID = ""
	dep := &Departure{
		Player:     p,
		Code:       r.Code,
		Index:      index,
		WasHost:    wasHost,
		DepartedAt: r.clock.Now(),
	}
	r.broadcastUnsafe(Event{Type: EventPlayerLeft, Payload: map[string]interface{}{
		"playerId":     p.ID,
		"name":         p.Name,
		"disconnected": true,
	}})
	r.logger.Infof("player %s disconnected", p.Name)
	r.afterDepartureUnsafe()
	return dep, nil
}

func (r *Room) playerByTokenUnsafe(token string) *Player {
	for _, p := range r.players {
		if p.Token == token {
			return p
		}
	}
	return nil
}

func (r *Room) playerByNameUnsafe(name string) *Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}
