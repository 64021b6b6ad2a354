// internal/game/lobby.go
package game

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kimlj/Multiwordle-sub000/internal/words"
)

const maxChatLength = 200

// AddPlayer joins a new player. Only allowed while the room is in the lobby.
func (r *Room) AddPlayer(name, token, connID string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if r.state != StateLobby {
		return nil, ErrInProgress
	}
	p, err := r.addPlayerUnsafe(name, token, connID)
	if err != nil {
		return nil, err
	}
	r.announceJoinUnsafe(p, false)
	return p, nil
}

func (r *Room) addPlayerUnsafe(name, token, connID string) (*Player, error) {
	name, ok := validName(name)
	if !ok {
		return nil, ErrInvalidName
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	if len(r.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if r.nameTakenUnsafe(name, nil) {
		return nil, ErrNameTaken
	}
	p := newPlayer(newPlayerID(), name, token, connID, r.clock.Now())
	if r.hostID == "" || len(r.players) == 0 {
		r.hostID = p.ID
	}
	// the host is always ready and never gates the start
	p.Ready = r.hostID == p.ID
	r.players = append(r.players, p)
	r.logger.Infof("player %s joined", p.Name)
	return p, nil
}

func (r *Room) announceJoinUnsafe(p *Player, rejoined bool) {
	r.broadcastExceptUnsafe(p, Event{Type: EventPlayerJoined, Payload: map[string]interface{}{
		"player":   r.publicPlayerUnsafe(p, r.clock.Now()),
		"rejoined": rejoined,
	}})
	r.syncAllUnsafe()
}

// UpdateName renames the caller while in the lobby.
func (r *Room) UpdateName(connID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.state != StateLobby {
		return ErrWrongState
	}
	name, ok := validName(name)
	if !ok {
		return ErrInvalidName
	}
	if r.nameTakenUnsafe(name, p) {
		return ErrNameTaken
	}
	p.Name = name
	r.syncAllUnsafe()
	return nil
}

// ToggleReady flips the caller's ready flag and returns the new value.
func (r *Room) ToggleReady(connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return false, ErrPlayerNotFound
	}
	return r.setReadyUnsafe(p, !p.Ready)
}

// SetReady sets the caller's ready flag.
func (r *Room) SetReady(connID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	_, err := r.setReadyUnsafe(p, ready)
	return err
}

func (r *Room) setReadyUnsafe(p *Player, ready bool) (bool, error) {
	switch r.state {
	case StateLobby:
	case StateGameEnd:
		if !p.OptedIn {
			return p.Ready, ErrNotOptedIn
		}
	default:
		return p.Ready, ErrWrongState
	}
	if r.isHostUnsafe(p) {
		p.Ready = true
		return true, nil
	}
	p.Ready = ready
	r.syncAllUnsafe()
	return p.Ready, nil
}

// allReadyUnsafe is the start gate: every non-host player must be ready.
func (r *Room) allReadyUnsafe() bool {
	for _, p := range r.players {
		if r.isHostUnsafe(p) {
			continue
		}
		if !p.Ready {
			return false
		}
	}
	return true
}

// UpdateSettings applies a partial settings change. Host only, lobby only.
func (r *Room) UpdateSettings(connID string, partial map[string]interface{}) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.requireHostUnsafe(connID); err != nil {
		return r.settings, err
	}
	if r.state != StateLobby {
		return r.settings, ErrWrongState
	}
	if err := r.settings.Update(partial, r.validWord); err != nil {
		return r.settings, err
	}
	r.logger.Debugf("settings updated: %+v", r.settings)
	r.syncAllUnsafe()
	return r.settings, nil
}

// Settings returns a copy of the current settings.
func (r *Room) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings
	s.CustomWords = append([]string(nil), r.settings.CustomWords...)
	return s
}

// StartGame moves the lobby into the first countdown. customWord overrides the first
// target; customWords, when given, replaces the per-round list from settings.
func (r *Room) StartGame(connID, customWord string, customWords []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.requireHostUnsafe(connID); err != nil {
		return err
	}
	if r.state != StateLobby {
		return ErrWrongState
	}
	if !r.allReadyUnsafe() {
		return ErrNotReady
	}
	if r.settings.Mode == ModeBattleRoyale && len(r.players) < 2 {
		return ErrTooFew.withMessage("battle royale needs at least 2 players")
	}

	list := append([]string(nil), r.settings.CustomWords...)
	if customWords != nil {
		list = append([]string(nil), customWords...)
	}
	if err := normalizeCustomWords(list, r.validWord); err != nil {
		return err
	}
	override, err := r.checkOverrideUnsafe(customWord)
	if err != nil {
		return err
	}

	r.customWords = list
	r.pendingWord = override
	r.round = 0
	r.history = nil
	r.absent = nil
	r.usedTargets = make(map[string]bool)
	r.usedOpeners = make(map[string]bool)
	r.startedAt = r.clock.Now()
	r.schedule = nil
	if r.settings.PowerUpsEnabled {
		r.schedule = buildItemSchedule(r.plannedRoundsUnsafe(), r.rng)
	}
	for _, p := range r.players {
		p.resetForLobby()
	}
	r.logger.Infof("game started with %d players (%s)", len(r.players), r.settings.Mode)
	r.beginCountdownUnsafe()
	return nil
}

// plannedRoundsUnsafe bounds the schedule; battle royale runs until one player remains.
func (r *Room) plannedRoundsUnsafe() int {
	if r.settings.Mode == ModeBattleRoyale {
		return len(r.players)
	}
	return r.settings.Rounds
}

func (r *Room) checkOverrideUnsafe(word string) (string, error) {
	word = words.Normalize(word)
	if word == "" {
		return "", nil
	}
	if !words.WellFormed(word) {
		return "", ErrInvalidWordLength
	}
	if !r.validWord(word) {
		return "", ErrNotInWordList
	}
	return word, nil
}

func (r *Room) validWord(word string) bool {
	if r.deps.Oracle == nil {
		return words.WellFormed(word)
	}
	return r.deps.Oracle.IsValidWord(word)
}

// Kick removes targetID. Host only; the host cannot kick themselves. Returns the
// kicked player's connection id.
func (r *Room) Kick(connID, targetID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	host, err := r.requireHostUnsafe(connID)
	if err != nil {
		return "", err
	}
	target := r.playerByIDUnsafe(targetID)
	if target == nil {
		return "", ErrTargetNotFound
	}
	if target == host {
		return "", ErrCannotKick
	}
	r.sendUnsafe(target, Event{Type: EventKicked, Payload: map[string]interface{}{"code": r.Code}})
	r.removePlayerUnsafe(target)
	r.broadcastUnsafe(Event{Type: EventPlayerKicked, Payload: map[string]interface{}{
		"playerId": target.ID,
		"name":     target.Name,
	}})
	r.logger.Infof("player %s kicked", target.Name)
	r.afterDepartureUnsafe()
	return target.ConnID, nil
}

// Leave removes the caller for good. No reconnection snapshot is kept.
func (r *Room) Leave(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	r.removePlayerUnsafe(p)
	r.broadcastUnsafe(Event{Type: EventPlayerLeft, Payload: map[string]interface{}{
		"playerId": p.ID,
		"name":     p.Name,
	}})
	r.logger.Infof("player %s left", p.Name)
	r.afterDepartureUnsafe()
	return nil
}

// afterDepartureUnsafe re-evaluates anything a smaller roster can change.
func (r *Room) afterDepartureUnsafe() {
	if len(r.players) == 0 {
		return
	}
	switch r.state {
	case StatePlaying:
		r.checkRoundOverUnsafe(r.clock.Now())
	case StateGameEnd:
		if r.allOptedInUnsafe() {
			r.resetToLobbyUnsafe(false)
			return
		}
	}
	r.syncAllUnsafe()
}

// PlayAgain opts the caller into the next game. When everyone has opted in the room
// returns to the lobby.
func (r *Room) PlayAgain(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.state != StateGameEnd {
		return ErrWrongState
	}
	p.OptedIn = true
	if r.allOptedInUnsafe() {
		r.resetToLobbyUnsafe(false)
		return nil
	}
	r.syncAllUnsafe()
	return nil
}

// RestartLobby returns to the lobby immediately, removing players who have not opted in.
func (r *Room) RestartLobby(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	host, err := r.requireHostUnsafe(connID)
	if err != nil {
		return err
	}
	if r.state != StateGameEnd {
		return ErrWrongState
	}
	host.OptedIn = true
	r.resetToLobbyUnsafe(true)
	return nil
}

func (r *Room) allOptedInUnsafe() bool {
	for _, p := range r.players {
		if !p.OptedIn {
			return false
		}
	}
	return len(r.players) > 0
}

// resetToLobbyUnsafe clears the finished game. With dropStragglers, players who did not
// opt in are removed and told they were left behind.
func (r *Room) resetToLobbyUnsafe(dropStragglers bool) {
	r.timers.reset()
	if dropStragglers {
		for _, p := range append([]*Player(nil), r.players...) {
			if p.OptedIn {
				continue
			}
			r.sendUnsafe(p, Event{Type: EventLeftBehind, Payload: map[string]interface{}{"code": r.Code}})
			r.removePlayerUnsafe(p)
			r.broadcastUnsafe(Event{Type: EventPlayerLeft, Payload: map[string]interface{}{
				"playerId": p.ID,
				"name":     p.Name,
			}})
		}
	}
	for _, p := range r.players {
		ready := p.Ready || r.isHostUnsafe(p)
		p.resetForLobby()
		p.Ready = ready
	}
	r.state = StateLobby
	r.round = 0
	r.target = ""
	r.mirrorOpener = ""
	r.pendingWord = ""
	r.customWords = nil
	r.history = nil
	r.eliminated = nil
	r.absent = nil
	r.schedule = nil
	r.challenge = nil
	r.roundEndsAt = time.Time{}
	r.guessDeadline = time.Time{}
	r.usedTargets = make(map[string]bool)
	r.usedOpeners = make(map[string]bool)
	r.broadcastUnsafe(Event{Type: EventGameReset, Payload: map[string]interface{}{"code": r.Code}})
	r.syncAllUnsafe()
	r.logger.Info("room returned to lobby")
}

// Chat relays a message to the room.
func (r *Room) Chat(connID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > maxChatLength {
		return ErrInvalidMessage
	}
	r.broadcastUnsafe(Event{Type: EventChat, Payload: map[string]interface{}{
		"playerId": p.ID,
		"name":     p.Name,
		"message":  message,
		"at":       r.clock.Now().UnixMilli(),
	}})
	return nil
}

// Sync sends the caller a full view of the room.
func (r *Room) Sync(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	r.syncPlayerUnsafe(p)
	return nil
}
