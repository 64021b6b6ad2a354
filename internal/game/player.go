// internal/game/player.go
package game

import (
	"strings"
	"time"
)

// Guess is one submitted word with its coloring.
type Guess struct {
	Word   string         `json:"word"`
	Result []LetterStatus `json:"result"`
	At     time.Time      `json:"at"`
	Auto   bool           `json:"auto,omitempty"` // mirror-match opener applied by the server
}

// Player is one participant of a room. All fields are guarded by the owning room's lock.
type Player struct {
	ID        string `json:"id"`
	Token     string `json:"-"`
	ConnID    string `json:"-"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	JoinedAt  time.Time

	// per-round fields, valid for round Round
	Round             int
	Guesses           []Guess
	Solved            bool
	SolvedAt          time.Time
	SolvedAtGuess     int
	RoundScore        int
	UsedItemThisRound bool
	BonusMs           int64
	Revealed          map[int]string
	hintFloor         int

	TotalScore      int
	Eliminated      bool
	EliminatedRound int
	Placement       int

	Inventory []ItemID
	Effects   map[ItemID]*ActiveEffect

	// drop weighting counters
	FailedStreak  int
	LowRankStreak int
	Standing      int
	PrevStanding  int

	Openers []string
	OptedIn bool
}

func newPlayer(id, name, token, connID string, now time.Time) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Token:     token,
		ConnID:    connID,
		Connected: true,
		JoinedAt:  now,
		Effects:   make(map[ItemID]*ActiveEffect),
		Revealed:  make(map[int]string),
	}
}

// finished reports whether the player can no longer guess this round.
func (p *Player) finished() bool {
	return p.Solved || len(p.Guesses) >= MaxGuesses
}

// resetRound clears per-round fields for round.
func (p *Player) resetRound(round int) {
	p.Round = round
	p.Guesses = nil
	p.Solved = false
	p.SolvedAt = time.Time{}
	p.SolvedAtGuess = 0
	p.RoundScore = 0
	p.UsedItemThisRound = false
	p.BonusMs = 0
	p.Revealed = make(map[int]string)
	p.hintFloor = 0
	p.clearTimedEffects()
}

// resetForLobby wipes everything competitive so a new game starts clean.
func (p *Player) resetForLobby() {
	p.resetRound(0)
	p.TotalScore = 0
	p.Eliminated = false
	p.EliminatedRound = 0
	p.Placement = 0
	p.Inventory = nil
	p.Effects = make(map[ItemID]*ActiveEffect)
	p.FailedStreak = 0
	p.LowRankStreak = 0
	p.Standing = 0
	p.PrevStanding = 0
	p.Openers = nil
	p.OptedIn = false
}

func (p *Player) hasItem(id ItemID) bool {
	for _, it := range p.Inventory {
		if it == id {
			return true
		}
	}
	return false
}

// removeItem drops the first held copy of id.
func (p *Player) removeItem(id ItemID) bool {
	for i, it := range p.Inventory {
		if it == id {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Player) usedOpener(word string) bool {
	for _, w := range p.Openers {
		if w == word {
			return true
		}
	}
	return false
}

// keyboardHints returns the best known status per letter, ignoring guesses wiped by amnesia.
func (p *Player) keyboardHints() map[string]LetterStatus {
	hints := make(map[string]LetterStatus)
	start := p.hintFloor
	if start > len(p.Guesses) {
		start = len(p.Guesses)
	}
	for _, g := range p.Guesses[start:] {
		for i := 0; i < len(g.Word) && i < len(g.Result); i++ {
			letter := string(g.Word[i])
			if statusRank(g.Result[i]) > statusRank(hints[letter]) {
				hints[letter] = g.Result[i]
			}
		}
	}
	return hints
}

func statusRank(s LetterStatus) int {
	switch s {
	case StatusCorrect:
		return 3
	case StatusPresent:
		return 2
	case StatusAbsent:
		return 1
	}
	return 0
}

// checkHardcore enforces that correct letters stay put and present letters are reused.
func checkHardcore(prev []Guess, word string) error {
	for _, g := range prev {
		for i := 0; i < len(g.Word) && i < len(g.Result); i++ {
			switch g.Result[i] {
			case StatusCorrect:
				if word[i] != g.Word[i] {
					return ErrHardcoreViolation.withMessage("letter %d must be %c", i+1, g.Word[i])
				}
			case StatusPresent:
				if !strings.ContainsRune(word, rune(g.Word[i])) {
					return ErrHardcoreViolation.withMessage("guess must contain %c", g.Word[i])
				}
			}
		}
	}
	return nil
}

func validName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := len([]rune(name))
	return name, n >= 1 && n <= 20
}
