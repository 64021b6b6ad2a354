// internal/game/events.go
package game

// EventType names an outbound message.
type EventType string

const (
	EventGameState          EventType = "game-state-update"
	EventPlayerState        EventType = "player-state"
	EventSpectatorState     EventType = "spectator-state"
	EventCountdown          EventType = "countdown"
	EventRoundStart         EventType = "round-start"
	EventTimerUpdate        EventType = "timer-update"
	EventGuessSubmitted     EventType = "guess-submitted"
	EventRoundEnd           EventType = "round-end"
	EventNextRoundCountdown EventType = "next-round-countdown"
	EventGameEnd            EventType = "game-end"
	EventGameReset          EventType = "game-reset"
	EventItemReceived       EventType = "item-received"
	EventItemUsed           EventType = "item-used"
	EventItemEarned         EventType = "item-earned"
	EventSabotaged          EventType = "sabotaged"
	EventShieldBlocked      EventType = "shield-blocked"
	EventShieldProtected    EventType = "shield-protected"
	EventMirrorReflected    EventType = "mirror-reflected"
	EventMirrorProtected    EventType = "mirror-protected"
	EventEffectExpired      EventType = "effect-expired"
	EventChallengeCompleted EventType = "challenge-completed"
	EventInventoryUpdate    EventType = "inventory-update"
	EventPlayerJoined       EventType = "player-joined"
	EventPlayerLeft         EventType = "player-left"
	EventPlayerKicked       EventType = "player-kicked"
	EventKicked             EventType = "kicked"
	EventLeftBehind         EventType = "left-behind"
	EventRoomClosed         EventType = "room-closed"
	EventChat               EventType = "chat-message"
)

// Event is one outbound message. Payload is marshalled as-is.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster delivers events to connections. Implementations must not block: the room
// calls Send while holding its lock.
type Broadcaster interface {
	Send(connID string, ev Event)
}

// BroadcasterFunc adapts a function to a Broadcaster.
type BroadcasterFunc func(connID string, ev Event)

// Send calls f.
func (f BroadcasterFunc) Send(connID string, ev Event) { f(connID, ev) }

// CountdownPayload is sent once per second before a round.
type CountdownPayload struct {
	Seconds int        `json:"seconds"`
	Round   int        `json:"round"`
	Preview *Challenge `json:"nextItemRoundPreview,omitempty"`
}

// RoundStartPayload announces a new round. MirrorOpener is per recipient.
type RoundStartPayload struct {
	Round         int        `json:"round"`
	TotalRounds   int        `json:"totalRounds"`
	RoundTimeMs   int64      `json:"roundTimeMs"`
	EndsAt        int64      `json:"endsAt"`
	GuessDeadline int64      `json:"guessDeadline,omitempty"`
	Challenge     *Challenge `json:"challenge,omitempty"`
	MirrorOpener  *Guess     `json:"mirrorOpenerResult,omitempty"`
}

// TimerPayload carries the base clock and each player's personal remaining time.
type TimerPayload struct {
	RemainingMs int64            `json:"remainingMs"`
	Players     map[string]int64 `json:"players"`
}

// GuessSubmittedPayload is public: colors only, never letters.
type GuessSubmittedPayload struct {
	PlayerID    string         `json:"playerId"`
	GuessNumber int            `json:"guessNumber"`
	Result      []LetterStatus `json:"result"`
	Solved      bool           `json:"solved"`
}

// RoundEndPayload reveals the word and the round's outcome.
type RoundEndPayload struct {
	Result   RoundResult `json:"result"`
	Drops    []Drop      `json:"drops,omitempty"`
	GameOver bool        `json:"gameOver"`
	State    PublicState `json:"state"`
}

// GameEndPayload carries final standings.
type GameEndPayload struct {
	Standings []StandingEntry `json:"standings"`
	History   []RoundResult   `json:"history"`
}

// SabotagePayload describes an attack to the players involved.
type SabotagePayload struct {
	Item      ItemID          `json:"item"`
	FromID    string          `json:"fromId"`
	TargetID  string          `json:"targetId"`
	Outcome   SabotageOutcome `json:"outcome"`
	ExpiresAt int64           `json:"expiresAt,omitempty"`
	Effect    *ActiveEffect   `json:"effect,omitempty"`
}
