// internal/game/room.go
package game

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle phase of a room.
type State string

const (
	StateLobby     State = "lobby"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateRoundEnd  State = "roundEnd"
	StateGameEnd   State = "gameEnd"
)

// MaxPlayers caps room size.
const MaxPlayers = 16

// WordOracle supplies target words and validates guesses.
type WordOracle interface {
	IsValidWord(word string) bool
	RandomWord() string
}

// Recorder receives finalized game summaries. Publish must not block.
type Recorder interface {
	Publish(s analytics.Summary)
}

// Timing holds the fixed countdown lengths.
type Timing struct {
	Countdown  time.Duration
	InterRound time.Duration
}

// DefaultTiming is 3s before each round and 10s between rounds.
func DefaultTiming() Timing {
	return Timing{Countdown: 3 * time.Second, InterRound: 10 * time.Second}
}

// Deps are the collaborators shared by every room.
type Deps struct {
	Oracle      WordOracle
	Broadcaster Broadcaster
	Recorder    Recorder
	Clock       clockwork.Clock
	Logger      logrus.FieldLogger
	Timing      Timing
	// Fingerprint maps a durable token to an opaque id for analytics. Optional.
	Fingerprint func(token string) string
}

// Room is one game session. Every exported method takes the room lock; methods with the
// Unsafe suffix expect the caller to hold it.
type Room struct {
	Code string

	mu     sync.Mutex
	clock  clockwork.Clock
	rng    *rand.Rand
	deps   Deps
	logger logrus.FieldLogger

	state    State
	settings Settings
	hostID   string
	players  []*Player

	round          int
	target         string
	roundStartedAt time.Time
	roundEndsAt    time.Time
	guessDeadline  time.Time
	lastTick       time.Time
	countdownLeft  int
	mirrorOpener   string
	pendingWord    string
	customWords    []string
	history        []RoundResult
	eliminated     []string
	absent         []*Player // battle royale survivors disconnected mid-game
	usedTargets    map[string]bool
	usedOpeners    map[string]bool
	schedule       map[int]*Challenge
	challenge      *Challenge
	startedAt      time.Time

	timers phaseTimers
	closed bool
}

func newRoom(code string, settings Settings, deps Deps, seed int64) *Room {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = BroadcasterFunc(func(string, Event) {})
	}
	if deps.Timing == (Timing{}) {
		deps.Timing = DefaultTiming()
	}
	return &Room{
		Code:        code,
		clock:       deps.Clock,
		rng:         rand.New(rand.NewSource(seed)),
		deps:        deps,
		logger:      deps.Logger.WithField("room", code),
		state:       StateLobby,
		settings:    settings,
		usedTargets: make(map[string]bool),
		usedOpeners: make(map[string]bool),
		timers:      phaseTimers{clock: deps.Clock},
	}
}

// State returns the current lifecycle phase.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Empty reports whether no player is present.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// Closed reports whether the room has been shut down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close cancels every timer and tells anyone still connected that the room is gone.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.timers.reset()
	r.closed = true
	r.broadcastUnsafe(Event{Type: EventRoomClosed, Payload: map[string]interface{}{"code": r.Code}})
	r.logger.Info("room closed")
}

// ----- lookup helpers -----

func (r *Room) playerByConnUnsafe(connID string) *Player {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) playerByIDUnsafe(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerIndexUnsafe(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) activePlayersUnsafe() []*Player {
	active := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if !p.Eliminated {
			active = append(active, p)
		}
	}
	return active
}

func (r *Room) isHostUnsafe(p *Player) bool {
	return p != nil && p.ID == r.hostID
}

// requireHostUnsafe resolves connID and checks it holds the host role.
func (r *Room) requireHostUnsafe(connID string) (*Player, error) {
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if !r.isHostUnsafe(p) {
		return nil, ErrNotHost
	}
	return p, nil
}

// removePlayerUnsafe drops p from the room and hands the host role on if needed.
func (r *Room) removePlayerUnsafe(p *Player) (index int, wasHost bool) {
	index = r.playerIndexUnsafe(p.ID)
	if index < 0 {
		return -1, false
	}
	r.players = append(r.players[:index], r.players[index+1:]...)
	wasHost = r.hostID == p.ID
	if wasHost && len(r.players) > 0 {
		next := r.players[0]
		r.hostID = next.ID
		next.Ready = true
		r.logger.Infof("host role passed to %s", next.Name)
	}
	return index, wasHost
}

func (r *Room) nameTakenUnsafe(name string, except *Player) bool {
	for _, p := range r.players {
		if p != except && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// ----- outbound -----

func (r *Room) sendUnsafe(p *Player, ev Event) {
	if p == nil || p.ConnID == "" {
		return
	}
	r.deps.Broadcaster.Send(p.ConnID, ev)
}

func (r *Room) broadcastUnsafe(ev Event) {
	for _, p := range r.players {
		r.sendUnsafe(p, ev)
	}
}

func (r *Room) broadcastExceptUnsafe(skip *Player, ev Event) {
	for _, p := range r.players {
		if p != skip {
			r.sendUnsafe(p, ev)
		}
	}
}

func newPlayerID() string {
	return uuid.NewString()
}
