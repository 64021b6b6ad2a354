// internal/game/registry.go
package game

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	maxCodeTries = 100
)

// RoomInfo is a lightweight listing entry.
type RoomInfo struct {
	Code    string `json:"code"`
	State   State  `json:"state"`
	Players int    `json:"players"`
	Mode    Mode   `json:"mode"`
}

// Info summarizes the room for listings.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{Code: r.Code, State: r.state, Players: len(r.players), Mode: r.settings.Mode}
}

// Registry owns every live room of the process.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	pending map[string]clockwork.Timer
	deps    Deps
	clock   clockwork.Clock
	rng     *rand.Rand
	logger  logrus.FieldLogger

	// held reports whether a room still has disconnect snapshots waiting on it.
	held func(code string) bool
}

// NewRegistry returns an empty registry whose rooms share deps.
func NewRegistry(deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		pending: make(map[string]clockwork.Timer),
		deps:    deps,
		clock:   deps.Clock,
		rng:     rand.New(rand.NewSource(deps.Clock.Now().UnixNano())),
		logger:  deps.Logger,
	}
}

// SetHoldCheck installs the check consulted before a scheduled deletion fires.
func (reg *Registry) SetHoldCheck(held func(code string) bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.held = held
}

// Create makes a room with partial settings applied over the defaults and seats the
// creator as host.
func (reg *Registry) Create(adm Admission, partial map[string]interface{}) (*Room, *Player, error) {
	settings := DefaultSettings()
	validWord := func(w string) bool {
		return reg.deps.Oracle == nil || reg.deps.Oracle.IsValidWord(w)
	}
	if err := settings.Update(partial, validWord); err != nil {
		return nil, nil, err
	}

	reg.mu.Lock()
	code, err := reg.newCodeUnsafe()
	if err != nil {
		reg.mu.Unlock()
		return nil, nil, err
	}
	room := newRoom(code, settings, reg.deps, reg.rng.Int63())
	reg.mu.Unlock()

	p, err := room.AddPlayer(adm.Name, adm.Token, adm.ConnID)
	if err != nil {
		return nil, nil, err
	}

	reg.mu.Lock()
	reg.rooms[code] = room
	reg.mu.Unlock()
	reg.logger.WithField("room", code).Infof("room created by %s", p.Name)
	return room, p, nil
}

func (reg *Registry) newCodeUnsafe() (string, error) {
	b := make([]byte, codeLength)
	for try := 0; try < maxCodeTries; try++ {
		for i := range b {
			b[i] = codeAlphabet[reg.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrRoomFull.withMessage("could not allocate a room code")
}

// NormalizeCode upper-cases and trims a user-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Get returns the room for code.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[NormalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Delete closes and forgets the room.
func (reg *Registry) Delete(code string) {
	code = NormalizeCode(code)
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	delete(reg.rooms, code)
	if t, pending := reg.pending[code]; pending {
		t.Stop()
		delete(reg.pending, code)
	}
	reg.mu.Unlock()
	if ok {
		room.Close()
		reg.logger.WithField("room", code).Info("room deleted")
	}
}

// ScheduleDelete deletes the room after d unless it is cancelled, someone is back in
// the room, or a disconnect snapshot still refers to it. Rescheduling replaces the timer.
func (reg *Registry) ScheduleDelete(code string, d time.Duration) {
	code = NormalizeCode(code)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; !ok {
		return
	}
	if t, ok := reg.pending[code]; ok {
		t.Stop()
	}
	var timer clockwork.Timer
	timer = reg.clock.AfterFunc(d, func() {
		reg.mu.Lock()
		if reg.pending[code] != timer {
			reg.mu.Unlock()
			return
		}
		delete(reg.pending, code)
		room := reg.rooms[code]
		held := reg.held
		reg.mu.Unlock()

		if room == nil || !room.Empty() {
			return
		}
		if held != nil && held(code) {
			reg.logger.WithField("room", code).Debug("deletion postponed, snapshots pending")
			reg.ScheduleDelete(code, d)
			return
		}
		reg.Delete(code)
	})
	reg.pending[code] = timer
	reg.logger.WithField("room", code).Debugf("deletion scheduled in %s", d)
}

// CancelDelete stops a scheduled deletion. It reports whether one was pending.
func (reg *Registry) CancelDelete(code string) bool {
	code = NormalizeCode(code)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	t, ok := reg.pending[code]
	if ok {
		t.Stop()
		delete(reg.pending, code)
	}
	return ok
}

// DeletePending reports whether a deletion is scheduled for code.
func (reg *Registry) DeletePending(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.pending[NormalizeCode(code)]
	return ok
}

// List returns every room sorted by code.
func (reg *Registry) List() []RoomInfo {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// CloseAll closes every room, for shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.Unlock()
	for _, code := range codes {
		reg.Delete(code)
	}
}
