// internal/game/scoring_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statuses(s string) []LetterStatus {
	out := make([]LetterStatus, len(s))
	for i, c := range s {
		switch c {
		case 'G':
			out[i] = StatusCorrect
		case 'Y':
			out[i] = StatusPresent
		default:
			out[i] = StatusAbsent
		}
	}
	return out
}

func TestEvaluateGuess(t *testing.T) {
	cases := []struct {
		guess, target, want string
	}{
		{"CRANE", "CRANE", "GGGGG"},
		{"PLUMB", "CRANE", "....."},
		{"SLATE", "CRANE", "..G.G"},
		{"NACRE", "CRANE", "YYYYG"},
		// one L guessed, two in the target, misplaced: exactly one present
		{"LOWER", "HELLO", "YY.Y."},
		// two E guessed, one in the target: only one gets credit
		{"EERIE", "CRANE", "..Y.G"},
		{"ABBEY", "BABES", "YYGG."},
		{"LLAMA", "HELLO", "YY..."},
	}
	for _, tc := range cases {
		t.Run(tc.guess+"/"+tc.target, func(t *testing.T) {
			assert.Equal(t, statuses(tc.want), EvaluateGuess(tc.guess, tc.target))
		})
	}
}

func TestEvaluateGuessSelfIsSolved(t *testing.T) {
	for _, w := range testWords {
		assert.True(t, IsSolved(EvaluateGuess(w, w)), w)
	}
}

func TestMultisetNeverDoubleCounts(t *testing.T) {
	for _, target := range testWords {
		for _, guess := range testWords {
			res := EvaluateGuess(guess, target)
			for letter := byte('A'); letter <= 'Z'; letter++ {
				inTarget, credited := 0, 0
				for i := 0; i < len(target); i++ {
					if target[i] == letter {
						inTarget++
					}
					if guess[i] == letter && res[i] != StatusAbsent {
						credited++
					}
				}
				assert.LessOrEqual(t, credited, inTarget, "%s vs %s letter %c", guess, target, letter)
			}
		}
	}
}

func TestRoundScore(t *testing.T) {
	const total = 180000
	assert.Equal(t, 2400, RoundScore(1, total, total), "documented maximum")
	assert.Equal(t, 1150, RoundScore(6, 0, total), "documented minimum")
	assert.Equal(t, 1150, RoundScore(6, 359, total), "time bonus floors")
	assert.Equal(t, 1000+750+250, RoundScore(2, total/2, total))
	assert.Equal(t, 0, RoundScore(0, total, total))
	assert.Equal(t, 0, RoundScore(7, total, total))
	assert.Equal(t, 2400, RoundScore(1, total*2, total), "bonus time never exceeds the cap")
	assert.Equal(t, 1900, RoundScore(1, -5, total))
}

func TestIsSolvedEmpty(t *testing.T) {
	assert.False(t, IsSolved(nil))
}
