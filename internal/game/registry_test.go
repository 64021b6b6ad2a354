// internal/game/registry_test.go
package game

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewRegistry(Deps{Oracle: newStubOracle(), Broadcaster: newMockBroadcaster(), Clock: clock}), clock
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg, _ := newTestRegistry()
	room, host, err := reg.Create(Admission{Name: "Alice", Token: "t1", ConnID: "c1"}, map[string]interface{}{
		"rounds": float64(5),
		"mode":   "battleRoyale",
	})
	require.NoError(t, err)
	assert.Len(t, room.Code, codeLength)
	for _, c := range room.Code {
		assert.True(t, strings.ContainsRune(codeAlphabet, c))
	}
	assert.Equal(t, host.ID, room.Snapshot().HostID)
	assert.Equal(t, 5, room.Settings().Rounds)
	assert.Equal(t, ModeBattleRoyale, room.Settings().Mode)

	got, err := reg.Get(strings.ToLower(room.Code))
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = reg.Get("NOPE42")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, []RoomInfo{room.Info()}, reg.List())
}

func TestRegistryCreateRejectsBadInput(t *testing.T) {
	reg, _ := newTestRegistry()
	_, _, err := reg.Create(Admission{Name: "Alice", Token: "t1", ConnID: "c1"}, map[string]interface{}{"rounds": float64(99)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, _, err = reg.Create(Admission{Name: "", Token: "t1", ConnID: "c1"}, nil)
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Zero(t, reg.Len(), "failed creates leave nothing behind")
}

func TestRegistryCodesUnique(t *testing.T) {
	reg, _ := newTestRegistry()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		room, _, err := reg.Create(Admission{Name: "Host", Token: "t", ConnID: "c"}, nil)
		require.NoError(t, err)
		require.False(t, seen[room.Code])
		seen[room.Code] = true
	}
	assert.Equal(t, 200, reg.Len())
}

func TestRegistryDeferredDelete(t *testing.T) {
	reg, clock := newTestRegistry()
	room, _, err := reg.Create(Admission{Name: "Alice", Token: "t1", ConnID: "c1"}, nil)
	require.NoError(t, err)
	_, err = room.Disconnect("c1")
	require.NoError(t, err)

	reg.ScheduleDelete(room.Code, time.Minute)
	assert.True(t, reg.DeletePending(room.Code))
	clock.Advance(30 * time.Second)
	assert.True(t, reg.CancelDelete(room.Code))
	clock.Advance(time.Minute)
	_, err = reg.Get(room.Code)
	require.NoError(t, err, "cancelled deletion keeps the room")

	reg.ScheduleDelete(room.Code, time.Minute)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, room.Closed())
}

func TestRegistryDeleteWaitsForSnapshots(t *testing.T) {
	reg, clock := newTestRegistry()
	var held atomic.Bool
	held.Store(true)
	reg.SetHoldCheck(func(string) bool { return held.Load() })

	room, _, err := reg.Create(Admission{Name: "Alice", Token: "t1", ConnID: "c1"}, nil)
	require.NoError(t, err)
	_, err = room.Disconnect("c1")
	require.NoError(t, err)

	reg.ScheduleDelete(room.Code, time.Minute)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return reg.DeletePending(room.Code) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, reg.Len())

	held.Store(false)
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRegistryKeepsOccupiedRoom(t *testing.T) {
	reg, clock := newTestRegistry()
	room, _, err := reg.Create(Admission{Name: "Alice", Token: "t1", ConnID: "c1"}, nil)
	require.NoError(t, err)
	reg.ScheduleDelete(room.Code, time.Minute)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return !reg.DeletePending(room.Code) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, reg.Len())
}
