// internal/game/drops.go
package game

import "time"

// DropReason names the rule that granted an end-of-round item.
type DropReason string

const (
	DropTopScorer  DropReason = "top_scorer"
	DropSpeedDemon DropReason = "speed_demon"
	DropMercy      DropReason = "mercy"
	DropComeback   DropReason = "comeback"
	DropUnderdog   DropReason = "underdog"
)

const (
	speedDemonLimit   = 20 * time.Second
	mercyStreak       = 2
	comebackJump      = 3
	comebackChance    = 0.5
	minLowRankCutoff  = 2
	underdogOneRound  = 0.5
	underdogTwoRounds = 0.75
	underdogSustained = 0.95
)

// Drop is an item granted at the end of a round.
type Drop struct {
	PlayerID string     `json:"playerId"`
	Item     ItemID     `json:"item"`
	Reason   DropReason `json:"reason"`
}

// dropInput is everything the drop rules look at for one player.
type dropInput struct {
	Round         int
	RoundScore    int
	TopRoundScore int
	Solved        bool
	SolveTime     time.Duration
	FailedStreak  int
	PrevStanding  int
	Standing      int
	LowRankStreak int
}

// dropTrigger returns the first rule the player qualifies for. Rules are checked in
// priority order and never stack. roll is consulted only by the probabilistic rules.
func dropTrigger(in dropInput, roll func() float64) (DropReason, bool) {
	if in.Round == 1 && in.RoundScore > 0 && in.RoundScore == in.TopRoundScore {
		return DropTopScorer, true
	}
	if in.Solved && in.SolveTime < speedDemonLimit {
		return DropSpeedDemon, true
	}
	if in.FailedStreak >= mercyStreak {
		return DropMercy, true
	}
	if in.PrevStanding > 0 && in.PrevStanding-in.Standing >= comebackJump {
		if roll() < comebackChance {
			return DropComeback, true
		}
		return "", false
	}
	if in.LowRankStreak > 0 {
		if roll() < underdogChance(in.LowRankStreak) {
			return DropUnderdog, true
		}
	}
	return "", false
}

func underdogChance(streak int) float64 {
	switch {
	case streak <= 0:
		return 0
	case streak == 1:
		return underdogOneRound
	case streak == 2:
		return underdogTwoRounds
	default:
		return underdogSustained
	}
}

// lowRankCutoff is the standing above which a player counts as trailing.
func lowRankCutoff(active int) int {
	half := (active + 1) / 2
	if half < minLowRankCutoff {
		return minLowRankCutoff
	}
	return half
}

// assignStandings ranks players by total score. Ties share a standing.
func assignStandings(active []*Player) {
	for _, p := range active {
		standing := 1
		for _, other := range active {
			if other.TotalScore > p.TotalScore {
				standing++
			}
		}
		p.Standing = standing
	}
}

// awardDropsUnsafe updates streak counters and grants at most one item per active player.
// Must be called after round scores have been folded into totals.
func (r *Room) awardDropsUnsafe(active []*Player) []Drop {
	top := 0
	for _, p := range active {
		if p.RoundScore > top {
			top = p.RoundScore
		}
	}

	cutoff := lowRankCutoff(len(active))
	var drops []Drop
	for _, p := range active {
		lowRank := p.Standing > cutoff
		if lowRank {
			p.LowRankStreak++
		} else {
			p.LowRankStreak = 0
		}

		in := dropInput{
			Round:         r.round,
			RoundScore:    p.RoundScore,
			TopRoundScore: top,
			Solved:        p.Solved,
			SolveTime:     p.SolvedAt.Sub(r.roundStartedAt),
			FailedStreak:  p.FailedStreak,
			PrevStanding:  p.PrevStanding,
			Standing:      p.Standing,
			LowRankStreak: p.LowRankStreak,
		}
		reason, ok := dropTrigger(in, r.rng.Float64)
		if !ok {
			continue
		}
		if reason == DropMercy {
			p.FailedStreak = 0
		}
		item := rollItem(r.rng, tierFor(p.Standing, lowRank))
		p.Inventory = append(p.Inventory, item)
		drops = append(drops, Drop{PlayerID: p.ID, Item: item, Reason: reason})
	}

	return drops
}
