// internal/game/special_actions_test.go
package game

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupItemRound starts round one with power-ups on and target CRANE.
func setupItemRound(t *testing.T, names ...string) *testRoom {
	t.Helper()
	settings := DefaultSettings()
	settings.PowerUpsEnabled = true
	tr := setupTestRoom(t, settings, names...)
	require.NoError(t, tr.StartGame(conn(names[0]), "CRANE", nil))
	tr.beginRound(t)
	return tr
}

func (tr *testRoom) give(name string, items ...ItemID) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	p := tr.playerByConnUnsafe(conn(name))
	p.Inventory = append(p.Inventory, items...)
}

func (tr *testRoom) hasEffect(name string, kind ItemID) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.playerByConnUnsafe(conn(name)).hasEffect(kind, tr.clock.Now())
}

func TestShieldBlocksExactlyOneSabotage(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Bob", ItemShield)
	tr.give("Alice", ItemBlindfold, ItemFreeze)
	bob := tr.player("Bob")

	_, err := tr.UseItem(conn("Bob"), ItemShield, "")
	require.NoError(t, err)
	assert.True(t, tr.hasEffect("Bob", ItemShield))

	out, err := tr.UseItem(conn("Alice"), ItemBlindfold, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeShieldBlocked, out.Outcome)
	assert.Empty(t, out.LandedOn)
	assert.False(t, tr.hasEffect("Bob", ItemShield), "the shield is consumed")
	assert.False(t, tr.hasEffect("Bob", ItemBlindfold))
	assert.Equal(t, []ItemID{ItemFreeze}, tr.player("Alice").Inventory)
	assert.NotNil(t, tr.mb.last(conn("Alice"), EventShieldBlocked))
	assert.NotNil(t, tr.mb.last(conn("Bob"), EventShieldProtected))

	// the next attack lands
	out, err = tr.UseItem(conn("Alice"), ItemFreeze, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out.Outcome)
	assert.Equal(t, bob.ID, out.LandedOn)
	assert.NotNil(t, tr.mb.last(conn("Bob"), EventSabotaged))

	_, err = tr.SubmitGuess(conn("Bob"), "SLATE")
	assert.ErrorIs(t, err, ErrFrozen)
	tr.clock.Advance(9 * time.Second)
	_, err = tr.SubmitGuess(conn("Bob"), "SLATE")
	assert.NoError(t, err, "freeze expires")
}

func TestMirrorShieldReflects(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Bob", ItemMirrorShield, ItemMirrorShield)
	tr.give("Alice", ItemFreeze, ItemAmnesia)
	bob := tr.player("Bob")

	_, err := tr.UseItem(conn("Bob"), ItemMirrorShield, "")
	require.NoError(t, err)
	out, err := tr.UseItem(conn("Alice"), ItemFreeze, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReflected, out.Outcome)
	assert.Equal(t, tr.player("Alice").ID, out.LandedOn)
	assert.True(t, tr.hasEffect("Alice", ItemFreeze))
	assert.False(t, tr.hasEffect("Bob", ItemFreeze))
	assert.False(t, tr.hasEffect("Bob", ItemMirrorShield))
	assert.NotNil(t, tr.mb.last(conn("Alice"), EventMirrorReflected))
	assert.NotNil(t, tr.mb.last(conn("Bob"), EventMirrorProtected))

	// amnesia cannot be reflected, only absorbed
	_, err = tr.UseItem(conn("Bob"), ItemMirrorShield, "")
	require.NoError(t, err)
	out, err = tr.UseItem(conn("Alice"), ItemAmnesia, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMirrorBlocked, out.Outcome)
	assert.Empty(t, out.LandedOn)
}

func TestShieldWinsOverMirror(t *testing.T) {
	now := time.Now()
	attacker := newPlayer("a", "A", "ta", "ca", now)
	target := newPlayer("b", "B", "tb", "cb", now)
	target.applyEffect(ActiveEffect{Kind: ItemShield, ExpiresAt: now.Add(time.Minute)})
	target.applyEffect(ActiveEffect{Kind: ItemMirrorShield, ExpiresAt: now.Add(time.Minute)})
	freeze, _ := LookupItem(ItemFreeze)

	outcome, victim := resolveSabotage(attacker, target, freeze, now, nil)
	assert.Equal(t, OutcomeShieldBlocked, outcome)
	assert.Nil(t, victim)
	assert.False(t, target.hasEffect(ItemShield, now))
	assert.True(t, target.hasEffect(ItemMirrorShield, now), "only one defence fires per attack")
}

func TestUseItemIsAtomic(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Alice", ItemBlindfold)
	alice := tr.player("Alice")

	_, err := tr.UseItem(conn("Alice"), ItemBlindfold, "nobody")
	assert.ErrorIs(t, err, ErrTargetNotFound)
	_, err = tr.UseItem(conn("Alice"), ItemBlindfold, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = tr.UseItem(conn("Alice"), ItemFreeze, tr.player("Bob").ID)
	assert.ErrorIs(t, err, ErrItemNotHeld)
	_, err = tr.UseItem(conn("Alice"), "laser", "")
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, []ItemID{ItemBlindfold}, tr.player("Alice").Inventory)

	require.NoError(t, tr.ForceEndRound(conn("Alice")))
	_, err = tr.UseItem(conn("Alice"), ItemBlindfold, tr.player("Bob").ID)
	assert.ErrorIs(t, err, ErrWrongState)
	assert.Contains(t, tr.player("Alice").Inventory, ItemBlindfold)
}

func TestItemsDisabled(t *testing.T) {
	tr := setupTestRoom(t, DefaultSettings(), "Alice", "Bob")
	require.NoError(t, tr.StartGame(conn("Alice"), "CRANE", nil))
	tr.beginRound(t)
	tr.give("Alice", ItemTimeBonus)
	_, err := tr.UseItem(conn("Alice"), ItemTimeBonus, "")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestLetterRevealAndSnipe(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Alice", ItemLetterReveal, ItemLetterSnipe)
	tr.give("Bob", ItemLetterSnipe, ItemLetterSnipe)

	_, err := tr.SubmitGuess(conn("Alice"), "SLATE") // A and E correct
	require.NoError(t, err)
	out, err := tr.UseItem(conn("Alice"), ItemLetterReveal, "")
	require.NoError(t, err)
	require.NotNil(t, out.Reveal)
	assert.NotContains(t, []int{2, 4}, out.Reveal.Position, "known positions are never revealed")
	assert.Equal(t, string("CRANE"[out.Reveal.Position]), out.Reveal.Letter)

	_, err = tr.LetterSnipe(conn("Alice"), "c")
	assert.ErrorIs(t, err, ErrItemLimit)
	assert.Contains(t, tr.player("Alice").Inventory, ItemLetterSnipe)

	_, err = tr.LetterSnipe(conn("Bob"), "1")
	assert.ErrorIs(t, err, ErrInvalidLetter)
	out, err = tr.LetterSnipe(conn("Bob"), "n")
	require.NoError(t, err)
	assert.Equal(t, &SnipeResult{Letter: "N", Present: true}, out.Snipe)

	_, err = tr.LetterSnipe(conn("Bob"), "z")
	assert.ErrorIs(t, err, ErrItemLimit)
	assert.Len(t, tr.player("Bob").Inventory, 1)
}

func TestTimeBonus(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Alice", ItemTimeBonus)
	out, err := tr.UseItem(conn("Alice"), ItemTimeBonus, "")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), out.BonusMs)

	state := tr.Snapshot()
	var alice, bob PublicPlayer
	for _, p := range state.Players {
		if p.Name == "Alice" {
			alice = p
		} else {
			bob = p
		}
	}
	assert.Equal(t, bob.RemainingMs+30000, alice.RemainingMs)
}

func TestSabotageViews(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Bob", ItemBlindfold, ItemKeyboardShuffle, ItemAmnesia)
	alice := tr.player("Alice")
	_, err := tr.SubmitGuess(conn("Alice"), "SLATE")
	require.NoError(t, err)

	_, err = tr.UseItem(conn("Bob"), ItemBlindfold, alice.ID)
	require.NoError(t, err)
	view, err := tr.PrivateView(conn("Alice"))
	require.NoError(t, err)
	assert.True(t, view.Blindfolded)
	assert.Nil(t, view.Guesses[0].Result)
	assert.Empty(t, view.KeyboardHints)

	tr.mb.clear()
	out, err := tr.SubmitGuess(conn("Alice"), "ROUTE")
	require.NoError(t, err)
	assert.Nil(t, out.Guess.Result, "the guesser's ack carries no colors")
	own := tr.mb.last(conn("Alice"), EventGuessSubmitted).Payload.(GuessSubmittedPayload)
	assert.Nil(t, own.Result)
	seen := tr.mb.last(conn("Bob"), EventGuessSubmitted).Payload.(GuessSubmittedPayload)
	assert.Len(t, seen.Result, 5, "opponents still see the colors")
	state := tr.mb.last(conn("Alice"), EventGameState).Payload.(PublicState)
	for _, pp := range state.Players {
		if pp.ID == alice.ID {
			assert.Empty(t, pp.Results)
			assert.Equal(t, 2, pp.GuessCount)
		}
	}
	public, err := tr.PublicViewFor(conn("Bob"))
	require.NoError(t, err)
	assert.Len(t, public.Players[0].Results, 2)
	mine, err := tr.PublicViewFor(conn("Alice"))
	require.NoError(t, err)
	assert.Empty(t, mine.Players[0].Results)

	_, err = tr.UseItem(conn("Bob"), ItemKeyboardShuffle, alice.ID)
	require.NoError(t, err)
	view, _ = tr.PrivateView(conn("Alice"))
	layout := strings.Split(view.Keyboard, "")
	sort.Strings(layout)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ", strings.Join(layout, ""))

	// blindfold runs out, then amnesia wipes the hints for good
	tr.clock.Advance(16 * time.Second)
	view, _ = tr.PrivateView(conn("Alice"))
	assert.False(t, view.Blindfolded)
	assert.NotEmpty(t, view.KeyboardHints)

	_, err = tr.UseItem(conn("Bob"), ItemAmnesia, alice.ID)
	require.NoError(t, err)
	view, _ = tr.PrivateView(conn("Alice"))
	assert.Empty(t, view.KeyboardHints)
	assert.Len(t, view.Guesses, 2, "the board itself stays")

	_, err = tr.SubmitGuess(conn("Alice"), "PLUMB")
	require.NoError(t, err)
	view, _ = tr.PrivateView(conn("Alice"))
	assert.Equal(t, StatusAbsent, view.KeyboardHints["P"])
	assert.NotContains(t, view.KeyboardHints, "S")
}

func TestChallengeRewardsFirstClaimant(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	require.NoError(t, tr.ForceEndRound(conn("Alice")))
	require.NoError(t, tr.NextRound(conn("Alice"), ""))

	tr.mu.Lock()
	require.NotNil(t, tr.schedule[2], "round two is an item round")
	tr.schedule[2].Kind = ChallengeFirstBlood
	tr.schedule[2].Reward = ItemShield
	tr.mu.Unlock()
	assert.NotNil(t, tr.mb.last(conn("Bob"), EventCountdown).Payload.(CountdownPayload).Preview)

	tr.beginRound(t)
	before := len(tr.player("Bob").Inventory)
	out, err := tr.SubmitGuess(conn("Bob"), wrongWord(tr.word()))
	require.NoError(t, err)
	require.NotNil(t, out.Challenge)
	assert.Equal(t, before+1, len(tr.player("Bob").Inventory))
	assert.NotNil(t, tr.mb.last(conn("Bob"), EventItemEarned))
	assert.NotNil(t, tr.mb.last(conn("Alice"), EventChallengeCompleted))

	aliceBefore := len(tr.player("Alice").Inventory)
	out, err = tr.SubmitGuess(conn("Alice"), wrongWord(tr.word()))
	require.NoError(t, err)
	assert.Nil(t, out.Challenge)
	assert.Equal(t, aliceBefore, len(tr.player("Alice").Inventory))
}

func TestEffectsSweptWithNotice(t *testing.T) {
	tr := setupItemRound(t, "Alice", "Bob")
	tr.give("Bob", ItemBlindfold)
	_, err := tr.UseItem(conn("Bob"), ItemBlindfold, tr.player("Alice").ID)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.sweepEffectsUnsafe(tr.clock.Now().Add(16 * time.Second))
	tr.mu.Unlock()
	ev := tr.mb.last(conn("Alice"), EventEffectExpired)
	require.NotNil(t, ev)
	assert.Equal(t, ItemBlindfold, ev.Payload.(map[string]interface{})["kind"])
}
