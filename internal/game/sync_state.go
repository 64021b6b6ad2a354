// internal/game/sync_state.go
package game

import (
	"time"
)

// PublicPlayer is what every connection may see about a player. Guess letters are never
// included, only their colors.
type PublicPlayer struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	IsHost      bool             `json:"isHost"`
	Ready       bool             `json:"ready"`
	Connected   bool             `json:"connected"`
	GuessCount  int              `json:"guessCount"`
	Results     [][]LetterStatus `json:"results"`
	Solved      bool             `json:"solved"`
	RoundScore  int              `json:"roundScore"`
	TotalScore  int              `json:"totalScore"`
	Eliminated  bool             `json:"eliminated"`
	Placement   int              `json:"placement,omitempty"`
	ItemCount   int              `json:"itemCount"`
	Effects     []ItemID         `json:"effects,omitempty"`
	RemainingMs int64            `json:"remainingMs"`
	OptedIn     bool             `json:"optedIn"`
}

// PublicState is the room snapshot broadcast as game-state-update.
type PublicState struct {
	Code          string         `json:"code"`
	State         State          `json:"state"`
	HostID        string         `json:"hostId"`
	Settings      Settings       `json:"settings"`
	CustomWords   int            `json:"customWordCount"`
	Round         int            `json:"round"`
	TotalRounds   int            `json:"totalRounds"`
	EndsAt        int64          `json:"endsAt,omitempty"`
	GuessDeadline int64          `json:"guessDeadline,omitempty"`
	RemainingMs   int64          `json:"remainingMs"`
	Countdown     int            `json:"countdown,omitempty"`
	Challenge     *Challenge     `json:"challenge,omitempty"`
	Eliminated    []string       `json:"eliminatedThisRound,omitempty"`
	Players       []PublicPlayer `json:"players"`
	ServerTime    int64          `json:"serverTime"`
}

// PrivateState is sent only to the owning connection.
type PrivateState struct {
	PlayerID      string                  `json:"playerId"`
	Guesses       []Guess                 `json:"guesses"`
	Solved        bool                    `json:"solved"`
	RoundScore    int                     `json:"roundScore"`
	TotalScore    int                     `json:"totalScore"`
	Inventory     []ItemID                `json:"inventory"`
	Effects       []ActiveEffect          `json:"effects"`
	Revealed      map[int]string          `json:"revealed,omitempty"`
	KeyboardHints map[string]LetterStatus `json:"keyboardHints"`
	Keyboard      string                  `json:"keyboardLayout,omitempty"`
	Blindfolded   bool                    `json:"blindfolded"`
	Frozen        bool                    `json:"frozen"`
	BonusMs       int64                   `json:"bonusMs"`
	RemainingMs   int64                   `json:"remainingMs"`
	Target        string                  `json:"targetWord,omitempty"`
	IsHost        bool                    `json:"isHost"`
}

// SpectatorBoard is one full board as seen by an eliminated player.
type SpectatorBoard struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Guesses  []Guess `json:"guesses"`
	Solved   bool    `json:"solved"`
}

// SpectatorState shows every active board, letters included.
type SpectatorState struct {
	Round  int              `json:"round"`
	Target string           `json:"targetWord,omitempty"`
	Boards []SpectatorBoard `json:"boards"`
}

// Snapshot returns the public room state.
func (r *Room) Snapshot() PublicState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publicStateUnsafe(r.clock.Now())
}

// PrivateView returns the private state of the player on connID.
func (r *Room) PrivateView(connID string) (PrivateState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return PrivateState{}, ErrPlayerNotFound
	}
	return r.privateStateUnsafe(p, r.clock.Now()), nil
}

func (r *Room) publicPlayerUnsafe(p *Player, now time.Time) PublicPlayer {
	pp := PublicPlayer{
		ID:         p.ID,
		Name:       p.Name,
		IsHost:     r.isHostUnsafe(p),
		Ready:      p.Ready,
		Connected:  p.Connected,
		GuessCount: len(p.Guesses),
		Results:    make([][]LetterStatus, 0, len(p.Guesses)),
		Solved:     p.Solved,
		RoundScore: p.RoundScore,
		TotalScore: p.TotalScore,
		Eliminated: p.Eliminated,
		Placement:  p.Placement,
		ItemCount:  len(p.Inventory),
		OptedIn:    p.OptedIn,
	}
	for _, g := range p.Guesses {
		pp.Results = append(pp.Results, g.Result)
	}
	for _, e := range p.activeEffects(now) {
		pp.Effects = append(pp.Effects, e.Kind)
	}
	if r.state == StatePlaying && !p.Eliminated {
		pp.RemainingMs = r.personalRemainingUnsafe(p, now)
	}
	return pp
}

func (r *Room) publicStateUnsafe(now time.Time) PublicState {
	settings := r.settings
	settings.CustomWords = nil
	st := PublicState{
		Code:          r.Code,
		State:         r.state,
		HostID:        r.hostID,
		Settings:      settings,
		CustomWords:   len(r.settings.CustomWords),
		Round:         r.round,
		TotalRounds:   r.settings.Rounds,
		EndsAt:        unixMs(r.roundEndsAt),
		GuessDeadline: unixMs(r.guessDeadline),
		Challenge:     r.challenge,
		Eliminated:    r.eliminated,
		Players:       make([]PublicPlayer, 0, len(r.players)),
		ServerTime:    now.UnixMilli(),
	}
	if r.settings.Mode == ModeBattleRoyale {
		st.TotalRounds = 0
	}
	switch r.state {
	case StatePlaying:
		st.RemainingMs = maxInt64(0, r.roundEndsAt.Sub(now).Milliseconds())
	case StateCountdown, StateRoundEnd:
		st.Countdown = r.countdownLeft
	}
	for _, p := range r.players {
		st.Players = append(st.Players, r.publicPlayerUnsafe(p, now))
	}
	return st
}

// privateStateUnsafe builds p's own view. A blindfold hides colors and hints; the
// target is only shown once the round is over.
func (r *Room) privateStateUnsafe(p *Player, now time.Time) PrivateState {
	ps := PrivateState{
		PlayerID:      p.ID,
		Guesses:       make([]Guess, 0, len(p.Guesses)),
		Solved:        p.Solved,
		RoundScore:    p.RoundScore,
		TotalScore:    p.TotalScore,
		Inventory:     append([]ItemID{}, p.Inventory...),
		Effects:       p.activeEffects(now),
		Revealed:      p.Revealed,
		KeyboardHints: p.keyboardHints(),
		Blindfolded:   p.hasEffect(ItemBlindfold, now),
		Frozen:        p.hasEffect(ItemFreeze, now),
		BonusMs:       p.BonusMs,
		IsHost:        r.isHostUnsafe(p),
	}
	for _, g := range p.Guesses {
		if ps.Blindfolded {
			g.Result = nil
		}
		ps.Guesses = append(ps.Guesses, g)
	}
	if ps.Blindfolded {
		ps.KeyboardHints = map[string]LetterStatus{}
	}
	if e, ok := p.Effects[ItemKeyboardShuffle]; ok && now.Before(e.ExpiresAt) {
		if layout, ok := e.Payload.(string); ok {
			ps.Keyboard = layout
		}
	}
	if r.state == StatePlaying && !p.Eliminated {
		ps.RemainingMs = r.personalRemainingUnsafe(p, now)
	}
	if r.state == StateRoundEnd || r.state == StateGameEnd {
		ps.Target = r.target
	}
	return ps
}

func (r *Room) spectatorStateUnsafe() SpectatorState {
	st := SpectatorState{Round: r.round, Target: r.target}
	for _, p := range r.activePlayersUnsafe() {
		st.Boards = append(st.Boards, SpectatorBoard{
			PlayerID: p.ID,
			Name:     p.Name,
			Guesses:  append([]Guess(nil), p.Guesses...),
			Solved:   p.Solved,
		})
	}
	return st
}

// viewerStateUnsafe adapts the shared snapshot for viewer. A blindfolded player loses
// the colors of their own board; everyone else's entry is untouched.
func (r *Room) viewerStateUnsafe(st PublicState, viewer *Player, now time.Time) PublicState {
	if !viewer.hasEffect(ItemBlindfold, now) {
		return st
	}
	players := append([]PublicPlayer(nil), st.Players...)
	for i := range players {
		if players[i].ID == viewer.ID {
			players[i].Results = [][]LetterStatus{}
		}
	}
	st.Players = players
	return st
}

// PublicViewFor returns the public snapshot as the player on connID receives it.
func (r *Room) PublicViewFor(connID string) (PublicState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return PublicState{}, ErrPlayerNotFound
	}
	now := r.clock.Now()
	return r.viewerStateUnsafe(r.publicStateUnsafe(now), p, now), nil
}

// syncAllUnsafe sends every player the public snapshot and their private view.
func (r *Room) syncAllUnsafe() {
	now := r.clock.Now()
	st := r.publicStateUnsafe(now)
	for _, p := range r.players {
		r.sendUnsafe(p, Event{Type: EventGameState, Payload: r.viewerStateUnsafe(st, p, now)})
		r.syncPlayerUnsafe(p)
	}
}

// syncPlayerUnsafe sends p its private view, plus every board when p is spectating.
func (r *Room) syncPlayerUnsafe(p *Player) {
	now := r.clock.Now()
	r.sendUnsafe(p, Event{Type: EventPlayerState, Payload: r.privateStateUnsafe(p, now)})
	if p.Eliminated && r.state != StateLobby {
		r.sendUnsafe(p, Event{Type: EventSpectatorState, Payload: r.spectatorStateUnsafe()})
	}
}
