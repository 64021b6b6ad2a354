// internal/game/scoring.go
package game

// LetterStatus is the coloring of one guess cell.
type LetterStatus string

const (
	StatusCorrect LetterStatus = "correct"
	StatusPresent LetterStatus = "present"
	StatusAbsent  LetterStatus = "absent"
)

// MaxGuesses is the number of guesses a player gets per round.
const MaxGuesses = 6

const (
	baseScore       = 1000
	guessBonusStep  = 150
	maxTimeBonus    = 500
	guessBonusLimit = 7
)

// EvaluateGuess colors guess against target. Both must be upper-case and of equal length.
// Exact matches are marked first and consume their letter from the target's multiset;
// misplaced letters are then marked only while unconsumed copies remain.
func EvaluateGuess(guess, target string) []LetterStatus {
	result := make([]LetterStatus, len(guess))
	var remaining [26]int

	for i := 0; i < len(target); i++ {
		if i < len(guess) && guess[i] == target[i] {
			result[i] = StatusCorrect
			continue
		}
		remaining[letterIndex(target[i])]++
	}

	for i := 0; i < len(guess); i++ {
		if result[i] == StatusCorrect {
			continue
		}
		idx := letterIndex(guess[i])
		if idx >= 0 && remaining[idx] > 0 {
			result[i] = StatusPresent
			remaining[idx]--
		} else {
			result[i] = StatusAbsent
		}
	}
	return result
}

// IsSolved reports whether every cell is correct.
func IsSolved(result []LetterStatus) bool {
	if len(result) == 0 {
		return false
	}
	for _, s := range result {
		if s != StatusCorrect {
			return false
		}
	}
	return true
}

// RoundScore is 1000 + (7-guessNumber)*150 + floor(500*remaining/total) for a solve on
// guess guessNumber. Guess numbers outside 1..6 score 0. remainingMs is clamped to [0, totalMs].
func RoundScore(guessNumber int, remainingMs, totalMs int64) int {
	if guessNumber < 1 || guessNumber > MaxGuesses {
		return 0
	}
	guessBonus := (guessBonusLimit - guessNumber) * guessBonusStep

	var timeBonus int64
	if totalMs > 0 {
		if remainingMs < 0 {
			remainingMs = 0
		}
		if remainingMs > totalMs {
			remainingMs = totalMs
		}
		timeBonus = maxTimeBonus * remainingMs / totalMs
	}
	return baseScore + guessBonus + int(timeBonus)
}

func letterIndex(b byte) int {
	if b < 'A' || b > 'Z' {
		return -1
	}
	return int(b - 'A')
}
