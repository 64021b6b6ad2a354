// internal/game/rejoin_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveInOrder mirrors the production decision order for tests inside this package.
func resolveInOrder(p Presence) Verdict {
	switch {
	case p.Snapshot:
		return VerdictRestore
	case p.LiveByToken || p.LiveByName && p.Rejoin:
		return VerdictTransplant
	case p.InLobby:
		return VerdictFreshJoin
	default:
		return VerdictReject
	}
}

func TestRejoinMidRoundKeepsBoard(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob", "Carol")
	require.NoError(t, tr.StartGame(conn("Alice"), "CRANE", nil))
	tr.beginRound(t)
	_, err := tr.SubmitGuess(conn("Bob"), "SLATE")
	require.NoError(t, err)
	before := tr.player("Bob")
	guesses := append([]Guess(nil), before.Guesses...)

	dep, err := tr.Disconnect(conn("Bob"))
	require.NoError(t, err)
	assert.Equal(t, 1, dep.Index)
	assert.False(t, dep.WasHost)
	assert.Nil(t, tr.player("Bob"))
	assert.Equal(t, StatePlaying, tr.State())

	adm, err := tr.Admit(Admission{Name: "Bob", Token: token("Bob"), ConnID: "conn-Bob-2"}, dep, resolveInOrder)
	require.NoError(t, err)
	assert.Equal(t, VerdictRestore, adm.Verdict)
	assert.Equal(t, before.ID, adm.Player.ID)
	assert.Equal(t, guesses, adm.Player.Guesses)

	state := tr.Snapshot()
	require.Len(t, state.Players, 3)
	assert.Equal(t, "Bob", state.Players[1].Name, "restored at the old seat")
	assert.True(t, state.Players[1].Connected)
}

func TestRejoinInLobbyIsClean(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	dep, err := tr.Disconnect(conn("Alice"))
	require.NoError(t, err)
	assert.True(t, dep.WasHost)
	assert.Equal(t, tr.player("Bob").ID, tr.Snapshot().HostID)

	dep.Player.TotalScore = 999
	adm, err := tr.Admit(Admission{Token: token("Alice"), ConnID: "conn-Alice-2"}, dep, resolveInOrder)
	require.NoError(t, err)
	assert.Zero(t, adm.Player.TotalScore)
	assert.Equal(t, adm.Player.ID, tr.Snapshot().HostID, "host role comes back")
	assert.True(t, adm.Player.Ready)
}

func TestRejoinAfterRoundBoundaryForfeitsRound(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	require.NoError(t, tr.StartGame(conn("Alice"), "CRANE", nil))
	tr.beginRound(t)
	_, err := tr.SubmitGuess(conn("Bob"), "SLATE")
	require.NoError(t, err)
	dep, err := tr.Disconnect(conn("Bob"))
	require.NoError(t, err)

	require.NoError(t, tr.ForceEndRound(conn("Alice")))
	require.NoError(t, tr.NextRound(conn("Alice"), ""))
	tr.beginRound(t)

	adm, err := tr.Admit(Admission{Name: "Bob", Token: token("Bob"), ConnID: "conn-Bob-2"}, dep, resolveInOrder)
	require.NoError(t, err)
	assert.Empty(t, adm.Player.Guesses)
	assert.Equal(t, 2, adm.Player.Round)
}

func TestTransplantEvictsStaleConnection(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	require.NoError(t, tr.StartGame(conn("Alice"), "", nil))

	adm, err := tr.Admit(Admission{Name: "Bob", Token: token("Bob"), ConnID: "conn-Bob-2"}, nil, resolveInOrder)
	require.NoError(t, err)
	assert.Equal(t, VerdictTransplant, adm.Verdict)
	assert.Equal(t, conn("Bob"), adm.EvictedConn)
	assert.Nil(t, tr.player("Bob"), "old connection no longer maps to a player")

	_, err = tr.SubmitGuess(conn("Bob"), "CRANE")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestJoinWithLiveNameIsRefused(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	_, err := tr.Admit(Admission{Name: "Alice", Token: "someone-else", ConnID: "conn-x"}, nil, resolveInOrder)
	assert.ErrorIs(t, err, ErrNameTaken)

	require.NoError(t, tr.StartGame(conn("Alice"), "", nil))
	_, err = tr.Admit(Admission{Name: "Alice", Token: "someone-else", ConnID: "conn-x"}, nil, resolveInOrder)
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.NotNil(t, tr.player("Alice"), "the seat stays on its connection")

	adm, err := tr.Admit(Admission{Name: "Alice", Token: "someone-else", ConnID: "conn-x", Rejoin: true}, nil, resolveInOrder)
	require.NoError(t, err)
	assert.Equal(t, VerdictTransplant, adm.Verdict)
	assert.Equal(t, conn("Alice"), adm.EvictedConn)
}

func TestRejectNewcomerMidGame(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	require.NoError(t, tr.StartGame(conn("Alice"), "", nil))
	_, err := tr.Admit(Admission{Name: "Carol", Token: token("Carol"), ConnID: conn("Carol")}, nil, resolveInOrder)
	assert.ErrorIs(t, err, ErrInProgress)

	lobby := setupTestRoom(t, DefaultSettings(), "Alice")
	adm, err := lobby.Admit(Admission{Name: "Carol", Token: token("Carol"), ConnID: conn("Carol")}, nil, resolveInOrder)
	require.NoError(t, err)
	assert.Equal(t, VerdictFreshJoin, adm.Verdict)
	assert.False(t, adm.Player.Ready)
}

func TestDisconnectEndsRoundWhenOthersDone(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	require.NoError(t, tr.StartGame(conn("Alice"), "CRANE", nil))
	tr.beginRound(t)
	_, err := tr.SubmitGuess(conn("Alice"), "CRANE")
	require.NoError(t, err)
	_, err = tr.Disconnect(conn("Bob"))
	require.NoError(t, err)
	assert.Equal(t, StateRoundEnd, tr.State())
}

func TestBattleRoyaleCutsAbsentPlayers(t *testing.T) {
	settings := DefaultSettings()
	settings.Mode = ModeBattleRoyale
	tr := setupTestRoom(t, settings, "A", "B", "C", "D")
	require.NoError(t, tr.StartGame(conn("A"), "", nil))
	tr.beginRound(t)

	target := tr.word()
	for i, name := range []string{"A", "B", "C"} {
		for j := 0; j < i; j++ {
			_, err := tr.SubmitGuess(conn(name), wrongWord(target))
			require.NoError(t, err)
		}
		_, err := tr.SubmitGuess(conn(name), target)
		require.NoError(t, err)
	}

	// a quick reconnect before the cut keeps the seat in play
	dep, err := tr.Disconnect(conn("B"))
	require.NoError(t, err)
	_, err = tr.Admit(Admission{Name: "B", Token: token("B"), ConnID: conn("B")}, dep, resolveInOrder)
	require.NoError(t, err)
	tr.mu.Lock()
	assert.Empty(t, tr.absent)
	tr.mu.Unlock()

	dID := tr.player("D").ID
	dep, err = tr.Disconnect(conn("D"))
	require.NoError(t, err)
	require.Equal(t, StateRoundEnd, tr.State(), "the last unfinished player left")

	re := tr.mb.last(conn("A"), EventRoundEnd)
	require.NotNil(t, re)
	result := re.Payload.(RoundEndPayload).Result
	assert.ElementsMatch(t, []string{dID, tr.player("C").ID}, result.Eliminated)
	assert.True(t, dep.Player.Eliminated)
	assert.Equal(t, 4, dep.Player.Placement, "away players place below everyone present")
	assert.Equal(t, 3, tr.player("C").Placement)
	assert.False(t, tr.player("A").Eliminated)
	assert.False(t, tr.player("B").Eliminated)

	require.NoError(t, tr.NextRound(conn("A"), ""))
	tr.beginRound(t)
	adm, err := tr.Admit(Admission{Name: "D", Token: token("D"), ConnID: "conn-D-2"}, dep, resolveInOrder)
	require.NoError(t, err)
	assert.Equal(t, VerdictRestore, adm.Verdict)
	assert.True(t, adm.Player.Eliminated, "returns as a spectator")
	_, err = tr.SubmitGuess("conn-D-2", tr.word())
	assert.ErrorIs(t, err, ErrEliminated)
}
