// internal/session/manager.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultGrace is how long a disconnected player's snapshot is kept.
const DefaultGrace = 2 * time.Minute

// Resolve picks how a (re)join is satisfied. The order is fixed: a grace-window
// snapshot first, then a live player holding the same token (or, on a rejoin only,
// the same name), then a fresh join while the room is still in the lobby. Anything
// else is refused.
func Resolve(p game.Presence) game.Verdict {
	switch {
	case p.Snapshot:
		return game.VerdictRestore
	case p.LiveByToken, p.LiveByName && p.Rejoin:
		return game.VerdictTransplant
	case p.InLobby:
		return game.VerdictFreshJoin
	default:
		return game.VerdictReject
	}
}

// Rooms is the part of the room registry the manager needs.
type Rooms interface {
	Create(adm game.Admission, settings map[string]interface{}) (*game.Room, *game.Player, error)
	Get(code string) (*game.Room, error)
	ScheduleDelete(code string, d time.Duration)
	CancelDelete(code string) bool
}

// Evictor force-closes a stale connection after its player moved elsewhere.
type Evictor interface {
	Evict(connID string)
}

type key struct {
	token string
	code  string
}

type snapshot struct {
	dep   *game.Departure
	timer clockwork.Timer
}

type binding struct {
	code  string
	token string
}

// Manager maps connections to rooms and holds disconnect snapshots for the grace window.
type Manager struct {
	mu        sync.Mutex
	rooms     Rooms
	evictor   Evictor
	clock     clockwork.Clock
	grace     time.Duration
	logger    logrus.FieldLogger
	snapshots map[key]*snapshot
	bindings  map[string]binding
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Clock  clockwork.Clock
	Grace  time.Duration
	Logger logrus.FieldLogger
}

// NewManager returns a manager over rooms. evictor may be nil.
func NewManager(rooms Rooms, evictor Evictor, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Manager{
		rooms:     rooms,
		evictor:   evictor,
		clock:     opts.Clock,
		grace:     opts.Grace,
		logger:    opts.Logger.WithField("component", "session"),
		snapshots: make(map[key]*snapshot),
		bindings:  make(map[string]binding),
	}
}

// Grace returns the grace window.
func (m *Manager) Grace() time.Duration { return m.grace }

// Create opens a room with the caller as host. A connection already in a room leaves it first.
func (m *Manager) Create(connID, name, token string, settings map[string]interface{}) (*game.Room, *game.Player, error) {
	m.leaveCurrent(connID)
	room, p, err := m.rooms.Create(game.Admission{Name: name, Token: token, ConnID: connID}, settings)
	if err != nil {
		return nil, nil, err
	}
	m.bind(connID, room.Code, token)
	return room, p, nil
}

// Join admits connID to the room code, restoring, transplanting or adding a player.
// A name held by another live player is refused with ErrNameTaken.
func (m *Manager) Join(connID, code, name, token string) (*game.Room, *game.Admitted, error) {
	return m.admit(game.Admission{Name: name, Token: token, ConnID: connID}, code)
}

// Rejoin is Join for a client recovering a dropped connection: with no token match, a
// live player of the same name is taken over and its stale connection evicted.
func (m *Manager) Rejoin(connID, code, name, token string) (*game.Room, *game.Admitted, error) {
	return m.admit(game.Admission{Name: name, Token: token, ConnID: connID, Rejoin: true}, code)
}

func (m *Manager) admit(req game.Admission, code string) (*game.Room, *game.Admitted, error) {
	connID, token := req.ConnID, req.Token
	if token == "" {
		return nil, nil, game.ErrInvalidToken
	}
	room, err := m.rooms.Get(code)
	if err != nil {
		return nil, nil, err
	}
	if b, ok := m.boundTo(connID); ok && b.code != room.Code {
		m.leaveCurrent(connID)
	}

	k := key{token: token, code: room.Code}
	snap := m.claim(k)
	var dep *game.Departure
	if snap != nil {
		dep = snap.dep
	}

	adm, err := room.Admit(req, dep, Resolve)
	if err != nil {
		if snap != nil {
			m.unclaim(k, snap)
		}
		return nil, nil, err
	}
	if snap != nil {
		snap.timer.Stop()
	}
	m.rooms.CancelDelete(room.Code)
	m.bind(connID, room.Code, token)

	log := m.logger.WithFields(logrus.Fields{"room": room.Code, "player": adm.Player.Name})
	log.Infof("admitted (%s)", adm.Verdict)
	if adm.EvictedConn != "" && adm.EvictedConn != connID {
		m.unbind(adm.EvictedConn)
		if m.evictor != nil {
			m.evictor.Evict(adm.EvictedConn)
		}
		log.Debugf("evicted stale connection %s", adm.EvictedConn)
	}
	return room, adm, nil
}

// Disconnect handles a dropped connection. The player's state is held for the grace
// window, and an emptied room is scheduled for deletion.
func (m *Manager) Disconnect(connID string) {
	b, ok := m.unbind(connID)
	if !ok {
		return
	}
	room, err := m.rooms.Get(b.code)
	if err != nil {
		return
	}
	dep, err := room.Disconnect(connID)
	if err != nil {
		if !errors.Is(err, game.ErrPlayerNotFound) {
			m.logger.WithError(err).Warn("disconnect failed")
		}
		m.scheduleIfEmpty(room)
		return
	}
	m.hold(key{token: b.token, code: room.Code}, dep)
	m.scheduleIfEmpty(room)
}

// Leave removes the caller for good. No snapshot is kept.
func (m *Manager) Leave(connID string) error {
	b, ok := m.boundTo(connID)
	if !ok {
		return game.ErrPlayerNotFound
	}
	room, err := m.rooms.Get(b.code)
	if err != nil {
		m.unbind(connID)
		return err
	}
	if err := room.Leave(connID); err != nil {
		return err
	}
	m.unbind(connID)
	m.scheduleIfEmpty(room)
	return nil
}

// Kick removes targetID from the caller's room and forgets the kicked connection.
func (m *Manager) Kick(connID, targetID string) error {
	room, err := m.Room(connID)
	if err != nil {
		return err
	}
	kicked, err := room.Kick(connID, targetID)
	if err != nil {
		return err
	}
	m.unbind(kicked)
	return nil
}

// Room returns the room connID is bound to.
func (m *Manager) Room(connID string) (*game.Room, error) {
	b, ok := m.boundTo(connID)
	if !ok {
		return nil, game.ErrPlayerNotFound
	}
	return m.rooms.Get(b.code)
}

// HasPending reports whether any snapshot still refers to code. The registry uses it
// to postpone deleting an empty room.
func (m *Manager) HasPending(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.snapshots {
		if k.code == code {
			return true
		}
	}
	return false
}

// Pending returns the number of held snapshots.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// Close drops every snapshot and stops their timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.snapshots {
		s.timer.Stop()
		delete(m.snapshots, k)
	}
}

// ----- internals -----

func (m *Manager) hold(k key, dep *game.Departure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.snapshots[k]; ok {
		old.timer.Stop()
	}
	s := &snapshot{dep: dep}
	s.timer = m.clock.AfterFunc(m.grace, func() { m.expire(k, s) })
	m.snapshots[k] = s
	m.logger.WithField("room", k.code).Debugf("holding %s for %s", dep.Player.Name, m.grace)
}

// expire drops s if it is still the snapshot held under k.
func (m *Manager) expire(k key, s *snapshot) {
	m.mu.Lock()
	if m.snapshots[k] != s {
		m.mu.Unlock()
		return
	}
	delete(m.snapshots, k)
	m.mu.Unlock()
	m.logger.WithField("room", k.code).Infof("grace window expired for %s", s.dep.Player.Name)
}

// claim takes the snapshot for k so that no concurrent rejoin can restore it twice.
func (m *Manager) claim(k key) *snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[k]
	if !ok {
		return nil
	}
	delete(m.snapshots, k)
	return s
}

// unclaim puts back a snapshot whose restore failed, unless its window ran out meanwhile.
func (m *Manager) unclaim(k key, s *snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clock.Since(s.dep.DepartedAt) >= m.grace {
		return
	}
	if _, taken := m.snapshots[k]; !taken {
		m.snapshots[k] = s
	}
}

func (m *Manager) bind(connID, code, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[connID] = binding{code: code, token: token}
}

func (m *Manager) unbind(connID string) (binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[connID]
	delete(m.bindings, connID)
	return b, ok
}

func (m *Manager) boundTo(connID string) (binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[connID]
	return b, ok
}

// leaveCurrent takes connID out of whatever room it is in before it moves elsewhere.
func (m *Manager) leaveCurrent(connID string) {
	if _, ok := m.boundTo(connID); ok {
		if err := m.Leave(connID); err != nil {
			m.unbind(connID)
		}
	}
}

func (m *Manager) scheduleIfEmpty(room *game.Room) {
	if room.Empty() {
		m.rooms.ScheduleDelete(room.Code, m.grace)
	}
}
