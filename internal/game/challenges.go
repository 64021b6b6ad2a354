// internal/game/challenges.go
package game

import (
	"math/rand"
	"strings"
	"time"
)

// ChallengeKind is the goal of an item round.
type ChallengeKind string

const (
	ChallengeFirstBlood  ChallengeKind = "first_blood"
	ChallengeRareLetters ChallengeKind = "rare_letters"
	ChallengeSpeedSolve  ChallengeKind = "speed_solve"
	ChallengeEfficiency  ChallengeKind = "efficiency"
)

var challengeKinds = []ChallengeKind{ChallengeFirstBlood, ChallengeRareLetters, ChallengeSpeedSolve, ChallengeEfficiency}

const (
	rareLetters       = "ZXQJ"
	speedSolveLimit   = 25 * time.Second
	efficiencyGuesses = 3
)

// Challenge is the single bonus goal of an item round. The first player to meet it wins Reward.
type Challenge struct {
	Round    int           `json:"round"`
	Kind     ChallengeKind `json:"kind"`
	Reward   ItemID        `json:"reward"`
	WinnerID string        `json:"winnerId,omitempty"`
}

// guessFacts is what a challenge inspects after an accepted guess.
type guessFacts struct {
	Word       string
	Solved     bool
	GuessCount int
	Elapsed    time.Duration
}

func (c *Challenge) satisfiedBy(f guessFacts) bool {
	switch c.Kind {
	case ChallengeFirstBlood:
		return true
	case ChallengeRareLetters:
		return strings.ContainsAny(f.Word, rareLetters)
	case ChallengeSpeedSolve:
		return f.Solved && f.Elapsed < speedSolveLimit
	case ChallengeEfficiency:
		return f.Solved && f.GuessCount <= efficiencyGuesses
	}
	return false
}

// claim awards the challenge to playerID if it is still open and satisfied.
func (c *Challenge) claim(playerID string, f guessFacts) bool {
	if c == nil || c.WinnerID != "" || !c.satisfiedBy(f) {
		return false
	}
	c.WinnerID = playerID
	return true
}

// buildItemSchedule makes every even round an item round with a random goal and reward.
func buildItemSchedule(rounds int, rng *rand.Rand) map[int]*Challenge {
	schedule := make(map[int]*Challenge)
	for round := 2; round <= rounds; round += 2 {
		schedule[round] = &Challenge{
			Round:  round,
			Kind:   challengeKinds[rng.Intn(len(challengeKinds))],
			Reward: rollItem(rng, tierMiddle),
		}
	}
	return schedule
}
