// internal/game/round.go
package game

import (
	"sort"
	"time"

	"github.com/kimlj/Multiwordle-sub000/internal/words"
)

const maxWordPicks = 50

// RoundResult is the immutable record of a finished round.
type RoundResult struct {
	Round      int               `json:"round"`
	Word       string            `json:"word"`
	Players    []PlayerRoundStat `json:"players"`
	Eliminated []string          `json:"eliminated,omitempty"`
	EndedAt    time.Time         `json:"endedAt"`
}

// PlayerRoundStat is one player's line in a RoundResult.
type PlayerRoundStat struct {
	PlayerID      string   `json:"playerId"`
	Name          string   `json:"name"`
	Guesses       []string `json:"guesses"`
	Solved        bool     `json:"solved"`
	SolvedAtGuess int      `json:"solvedAtGuess,omitempty"`
	SolveTimeMs   int64    `json:"solveTimeMs,omitempty"`
	Score         int      `json:"score"`
	TotalScore    int      `json:"totalScore"`
}

// GuessOutcome is returned to the guesser.
type GuessOutcome struct {
	Guess       Guess      `json:"guess"`
	GuessNumber int        `json:"guessNumber"`
	Solved      bool       `json:"solved"`
	Score       int        `json:"score,omitempty"`
	Challenge   *Challenge `json:"challengeWon,omitempty"`
}

// ----- countdowns -----

// beginCountdownUnsafe enters the pre-round countdown, previewing the next item round.
func (r *Room) beginCountdownUnsafe() {
	r.state = StateCountdown
	r.syncAllUnsafe()
	r.countdownUnsafe(EventCountdown, seconds(r.deps.Timing.Countdown), r.schedule[r.round+1], r.startRoundUnsafe)
}

// beginInterRoundUnsafe runs the between-rounds countdown, then the pre-round countdown.
func (r *Room) beginInterRoundUnsafe() {
	r.countdownUnsafe(EventNextRoundCountdown, seconds(r.deps.Timing.InterRound), nil, func(time.Time) {
		r.beginCountdownUnsafe()
	})
}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// ----- round start -----

// startRoundUnsafe advances the round counter, picks the word, and starts the round clock.
func (r *Room) startRoundUnsafe(now time.Time) {
	r.timers.reset()
	r.round++
	r.target = r.pickTargetUnsafe()
	r.usedTargets[r.target] = true
	r.pendingWord = ""

	total := time.Duration(r.settings.RoundTimeSec) * time.Second
	r.roundStartedAt = now
	r.roundEndsAt = now.Add(total)
	r.lastTick = now
	r.guessDeadline = time.Time{}
	if r.settings.GuessTimeSec > 0 {
		r.guessDeadline = now.Add(time.Duration(r.settings.GuessTimeSec) * time.Second)
	}
	r.eliminated = nil
	r.mirrorOpener = ""
	r.challenge = r.schedule[r.round]
	r.state = StatePlaying

	active := r.activePlayersUnsafe()
	for _, p := range active {
		p.resetRound(r.round)
	}

	openers := make(map[string]*Guess)
	if r.settings.MirrorMatch {
		r.mirrorOpener = r.pickOpenerUnsafe()
		r.usedOpeners[r.mirrorOpener] = true
		for _, p := range active {
			out := r.applyGuessUnsafe(p, r.mirrorOpener, now, true)
			g := out.Guess
			openers[p.ID] = &g
		}
	}

	r.logger.Infof("round %d started", r.round)
	for _, p := range r.players {
		r.sendUnsafe(p, Event{Type: EventRoundStart, Payload: RoundStartPayload{
			Round:         r.round,
			TotalRounds:   r.settings.Rounds,
			RoundTimeMs:   total.Milliseconds(),
			EndsAt:        unixMs(r.roundEndsAt),
			GuessDeadline: unixMs(r.guessDeadline),
			Challenge:     r.challenge,
			MirrorOpener:  openers[p.ID],
		}})
	}
	r.syncAllUnsafe()
	r.everyUnsafe(tickInterval, r.tickRoundUnsafe)

	// the opener itself may have solved the word
	r.checkRoundOverUnsafe(now)
}

// pickTargetUnsafe: explicit override, then this round's custom word, then a random
// word not yet used this game.
func (r *Room) pickTargetUnsafe() string {
	if r.pendingWord != "" {
		return r.pendingWord
	}
	if idx := r.round - 1; idx >= 0 && idx < len(r.customWords) && r.customWords[idx] != "" {
		return r.customWords[idx]
	}
	return r.randomWordUnsafe(func(w string) bool { return !r.usedTargets[w] })
}

// pickOpenerUnsafe returns a shared opener that is never the target or a custom word.
// With fresh openers it also avoids earlier openers and targets.
func (r *Room) pickOpenerUnsafe() string {
	custom := make(map[string]bool, len(r.customWords))
	for _, w := range r.customWords {
		custom[w] = true
	}
	return r.randomWordUnsafe(func(w string) bool {
		if w == r.target || custom[w] {
			return false
		}
		if r.settings.FreshOpenersOnly && (r.usedOpeners[w] || r.usedTargets[w]) {
			return false
		}
		return true
	})
}

func (r *Room) randomWordUnsafe(accept func(string) bool) string {
	var w string
	for i := 0; i < maxWordPicks; i++ {
		w = words.Normalize(r.deps.Oracle.RandomWord())
		if accept(w) {
			return w
		}
	}
	r.logger.Warnf("no acceptable word after %d picks, using %s", maxWordPicks, w)
	return w
}

// ----- guessing -----

// SubmitGuess validates and records one guess for the caller.
func (r *Room) SubmitGuess(connID, word string) (*GuessOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerByConnUnsafe(connID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if r.state != StatePlaying {
		return nil, ErrWrongState
	}
	if p.Eliminated {
		return nil, ErrEliminated
	}
	if p.Solved {
		return nil, ErrSolved
	}
	if len(p.Guesses) >= MaxGuesses {
		return nil, ErrOutOfGuess
	}
	now := r.clock.Now()
	if r.personalRemainingUnsafe(p, now) <= 0 {
		return nil, ErrTimeUp
	}
	if p.hasEffect(ItemFreeze, now) {
		return nil, ErrFrozen
	}

	word = words.Normalize(word)
	if !words.WellFormed(word) {
		return nil, ErrInvalidWordLength
	}
	if !r.validWord(word) {
		return nil, ErrNotInWordList
	}
	if r.settings.HardcoreMode {
		if err := checkHardcore(p.Guesses, word); err != nil {
			return nil, err
		}
	}
	if r.settings.FreshOpenersOnly && len(p.Guesses) == 0 && p.usedOpener(word) {
		return nil, ErrOpenerReused
	}

	out := r.applyGuessUnsafe(p, word, now, false)
	if r.settings.GuessTimeSec > 0 {
		r.guessDeadline = now.Add(time.Duration(r.settings.GuessTimeSec) * time.Second)
	}

	submitted := GuessSubmittedPayload{
		PlayerID:    p.ID,
		GuessNumber: out.GuessNumber,
		Result:      out.Guess.Result,
		Solved:      out.Solved,
	}
	blind := p.hasEffect(ItemBlindfold, now)
	if blind {
		r.broadcastExceptUnsafe(p, Event{Type: EventGuessSubmitted, Payload: submitted})
		submitted.Result = nil
		r.sendUnsafe(p, Event{Type: EventGuessSubmitted, Payload: submitted})
		out.Guess.Result = nil
	} else {
		r.broadcastUnsafe(Event{Type: EventGuessSubmitted, Payload: submitted})
	}
	r.syncAllUnsafe()
	r.checkRoundOverUnsafe(now)
	return out, nil
}

// applyGuessUnsafe evaluates and records word with no validation. auto marks the
// mirror-match opener, which never counts toward challenges.
func (r *Room) applyGuessUnsafe(p *Player, word string, now time.Time, auto bool) *GuessOutcome {
	g := Guess{Word: word, Result: EvaluateGuess(word, r.target), At: now, Auto: auto}
	if len(p.Guesses) == 0 {
		p.Openers = append(p.Openers, word)
	}
	p.Guesses = append(p.Guesses, g)
	out := &GuessOutcome{Guess: g, GuessNumber: len(p.Guesses)}

	if IsSolved(g.Result) {
		p.Solved = true
		p.SolvedAt = now
		p.SolvedAtGuess = len(p.Guesses)
		total := time.Duration(r.settings.RoundTimeSec) * time.Second
		remaining := minInt64(r.personalRemainingUnsafe(p, now), total.Milliseconds())
		p.RoundScore = RoundScore(p.SolvedAtGuess, remaining, total.Milliseconds())
		out.Solved = true
		out.Score = p.RoundScore
		r.logger.Debugf("%s solved in %d (score %d)", p.Name, p.SolvedAtGuess, p.RoundScore)
	}

	if !auto && r.challenge.claim(p.ID, guessFacts{
		Word:       word,
		Solved:     p.Solved,
		GuessCount: len(p.Guesses),
		Elapsed:    now.Sub(r.roundStartedAt),
	}) {
		p.Inventory = append(p.Inventory, r.challenge.Reward)
		out.Challenge = r.challenge
		r.sendUnsafe(p, Event{Type: EventItemEarned, Payload: map[string]interface{}{
			"item":      r.challenge.Reward,
			"challenge": r.challenge.Kind,
		}})
		r.sendUnsafe(p, Event{Type: EventInventoryUpdate, Payload: map[string]interface{}{"inventory": p.Inventory}})
		r.broadcastUnsafe(Event{Type: EventChallengeCompleted, Payload: map[string]interface{}{
			"playerId":  p.ID,
			"name":      p.Name,
			"challenge": r.challenge,
		}})
	}
	return out
}

// ----- round over -----

// checkRoundOverUnsafe ends the round if it is over. Every state-changing path calls
// it so that guesses, departures and ticks all converge on the same decision.
func (r *Room) checkRoundOverUnsafe(now time.Time) {
	if r.state != StatePlaying {
		return
	}
	if r.isRoundOverUnsafe(now) {
		r.endRoundUnsafe(now, false)
	}
}

// isRoundOverUnsafe: every active player is finished, the guess deadline passed, or
// no unfinished active player has time left.
func (r *Room) isRoundOverUnsafe(now time.Time) bool {
	anyTime := false
	allDone := true
	for _, p := range r.activePlayersUnsafe() {
		if p.finished() {
			continue
		}
		allDone = false
		if r.personalRemainingUnsafe(p, now) > 0 {
			anyTime = true
		}
	}
	if allDone {
		return true
	}
	if !r.guessDeadline.IsZero() && !now.Before(r.guessDeadline) {
		return true
	}
	return !anyTime
}

// IsRoundOver evaluates the round-over condition at the current time.
func (r *Room) IsRoundOver() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StatePlaying && r.isRoundOverUnsafe(r.clock.Now())
}

// endRoundUnsafe freezes the round. final skips drops and goes straight to game end.
func (r *Room) endRoundUnsafe(now time.Time, final bool) {
	r.timers.reset()
	active := r.activePlayersUnsafe()
	for _, p := range active {
		if !p.Solved {
			p.RoundScore = 0
			p.FailedStreak++
		} else {
			p.FailedStreak = 0
		}
		p.TotalScore += p.RoundScore
		p.BonusMs = 0
		p.clearTimedEffects()
	}
	assignStandings(active)

	result := RoundResult{Round: r.round, Word: r.target, EndedAt: now}
	for _, p := range active {
		stat := PlayerRoundStat{
			PlayerID:      p.ID,
			Name:          p.Name,
			Guesses:       make([]string, 0, len(p.Guesses)),
			Solved:        p.Solved,
			SolvedAtGuess: p.SolvedAtGuess,
			Score:         p.RoundScore,
			TotalScore:    p.TotalScore,
		}
		for _, g := range p.Guesses {
			stat.Guesses = append(stat.Guesses, g.Word)
		}
		if p.Solved {
			stat.SolveTimeMs = p.SolvedAt.Sub(r.roundStartedAt).Milliseconds()
		}
		result.Players = append(result.Players, stat)
	}

	if r.settings.Mode == ModeBattleRoyale {
		for _, p := range r.cutAbsentUnsafe(len(active)) {
			r.eliminated = append(r.eliminated, p.ID)
			result.Eliminated = append(result.Eliminated, p.ID)
			r.logger.Infof("%s eliminated in round %d while away (placement %d)", p.Name, r.round, p.Placement)
		}
		for _, p := range eliminate(active, r.round) {
			r.eliminated = append(r.eliminated, p.ID)
			result.Eliminated = append(result.Eliminated, p.ID)
			r.logger.Infof("%s eliminated in round %d (placement %d)", p.Name, r.round, p.Placement)
		}
	}
	r.history = append(r.history, result)

	gameOver := final || r.isGameOverUnsafe()
	var drops []Drop
	if r.settings.PowerUpsEnabled && !gameOver {
		drops = r.awardDropsUnsafe(r.activePlayersUnsafe())
	}
	for _, p := range active {
		p.PrevStanding = p.Standing
	}

	r.state = StateRoundEnd
	r.logger.Infof("round %d ended, word %s", r.round, r.target)
	r.broadcastUnsafe(Event{Type: EventRoundEnd, Payload: RoundEndPayload{
		Result:   result,
		Drops:    drops,
		GameOver: gameOver,
		State:    r.publicStateUnsafe(now),
	}})
	for _, d := range drops {
		p := r.playerByIDUnsafe(d.PlayerID)
		r.sendUnsafe(p, Event{Type: EventItemReceived, Payload: d})
		r.sendUnsafe(p, Event{Type: EventInventoryUpdate, Payload: map[string]interface{}{"inventory": p.Inventory}})
	}

	if gameOver {
		r.endGameUnsafe(now)
		return
	}
	r.syncAllUnsafe()
	r.beginInterRoundUnsafe()
}

// eliminate removes everyone tied at the lowest round score, but always leaves at least
// one survivor. Placement is activeBefore minus the tie index.
func eliminate(active []*Player, round int) []*Player {
	if len(active) <= 1 {
		return nil
	}
	low := active[0].RoundScore
	for _, p := range active[1:] {
		if p.RoundScore < low {
			low = p.RoundScore
		}
	}
	var cut []*Player
	for _, p := range active {
		if p.RoundScore == low {
			cut = append(cut, p)
		}
	}
	if len(cut) == len(active) {
		// full tie: spare the best cumulative score, earliest joiner on ties
		best := 0
		for i, p := range cut {
			if p.TotalScore > cut[best].TotalScore {
				best = i
			}
		}
		cut = append(cut[:best:best], cut[best+1:]...)
	}
	before := len(active)
	for i, p := range cut {
		p.Eliminated = true
		p.EliminatedRound = round
		p.Placement = before - i
	}
	return cut
}

// cutAbsentUnsafe eliminates battle royale players who were away when the round was
// scored. They place below everyone present. Nobody is cut when no one is present.
func (r *Room) cutAbsentUnsafe(present int) []*Player {
	if present == 0 || len(r.absent) == 0 {
		return nil
	}
	cut := r.absent
	r.absent = nil
	before := present + len(cut)
	for i, p := range cut {
		p.Eliminated = true
		p.EliminatedRound = r.round
		p.Placement = before - i
	}
	return cut
}

func (r *Room) dropAbsentUnsafe(p *Player) {
	for i, a := range r.absent {
		if a == p {
			r.absent = append(r.absent[:i], r.absent[i+1:]...)
			return
		}
	}
}

// isGameOverUnsafe: classic ends after the configured rounds, battle royale at one survivor.
func (r *Room) isGameOverUnsafe() bool {
	if r.settings.Mode == ModeBattleRoyale {
		return len(r.activePlayersUnsafe()) <= 1
	}
	return r.round >= r.settings.Rounds
}

// ----- host controls -----

// NextRound skips the rest of the between-rounds countdown. Host only, roundEnd only.
func (r *Room) NextRound(connID, customWord string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.requireHostUnsafe(connID); err != nil {
		return err
	}
	if r.state != StateRoundEnd {
		return ErrWrongState
	}
	override, err := r.checkOverrideUnsafe(customWord)
	if err != nil {
		return err
	}
	r.pendingWord = override
	r.beginCountdownUnsafe()
	return nil
}

// ForceEndRound ends the current round now. Host only.
func (r *Room) ForceEndRound(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.requireHostUnsafe(connID); err != nil {
		return err
	}
	if r.state != StatePlaying {
		return ErrWrongState
	}
	r.endRoundUnsafe(r.clock.Now(), false)
	return nil
}

// EndGame finishes the game early. A round in progress is scored first. Host only.
func (r *Room) EndGame(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.requireHostUnsafe(connID); err != nil {
		return err
	}
	now := r.clock.Now()
	switch r.state {
	case StatePlaying:
		r.endRoundUnsafe(now, true)
	case StateCountdown, StateRoundEnd:
		r.endGameUnsafe(now)
	default:
		return ErrWrongState
	}
	return nil
}

// ----- game end -----

// StandingEntry is a player's final position.
type StandingEntry struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	TotalScore int    `json:"totalScore"`
	Placement  int    `json:"placement"`
	Eliminated bool   `json:"eliminated,omitempty"`
}

// endGameUnsafe finalizes standings, announces them, and hands the summary to analytics.
func (r *Room) endGameUnsafe(now time.Time) {
	r.timers.reset()
	r.state = StateGameEnd
	standings := r.standingsUnsafe()
	for _, p := range r.players {
		p.OptedIn = false
	}
	r.logger.Infof("game ended after %d rounds", r.round)
	r.broadcastUnsafe(Event{Type: EventGameEnd, Payload: GameEndPayload{
		Standings: standings,
		History:   r.history,
	}})
	r.syncAllUnsafe()
	if r.deps.Recorder != nil {
		r.deps.Recorder.Publish(r.summaryUnsafe(now, standings))
	}
}

// standingsUnsafe assigns final placements and returns players in finishing order.
// Battle royale sorts by placement with survivors ranked by score; classic sorts by
// score with ties sharing a placement.
func (r *Room) standingsUnsafe() []StandingEntry {
	ordered := append([]*Player(nil), r.players...)
	if r.settings.Mode == ModeBattleRoyale {
		var survivors []*Player
		for _, p := range ordered {
			if !p.Eliminated {
				survivors = append(survivors, p)
			}
		}
		sort.SliceStable(survivors, func(i, j int) bool { return survivors[i].TotalScore > survivors[j].TotalScore })
		for i, p := range survivors {
			p.Placement = i + 1
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Placement != ordered[j].Placement {
				return ordered[i].Placement < ordered[j].Placement
			}
			return ordered[i].TotalScore > ordered[j].TotalScore
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TotalScore > ordered[j].TotalScore })
		for i, p := range ordered {
			p.Placement = i + 1
			if i > 0 && p.TotalScore == ordered[i-1].TotalScore {
				p.Placement = ordered[i-1].Placement
			}
		}
	}

	out := make([]StandingEntry, 0, len(ordered))
	for _, p := range ordered {
		out = append(out, StandingEntry{
			PlayerID:   p.ID,
			Name:       p.Name,
			TotalScore: p.TotalScore,
			Placement:  p.Placement,
			Eliminated: p.Eliminated,
		})
	}
	return out
}
