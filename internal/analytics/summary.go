// internal/analytics/summary.go
package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the finalized record of one completed game, handed to analytics sinks
// once the game ends. It is never read back by gameplay code.
type Summary struct {
	ID        uuid.UUID              `json:"id"`
	RoomCode  string                 `json:"room_code"`
	Mode      string                 `json:"mode"`
	Settings  map[string]interface{} `json:"settings"`
	Host      string                 `json:"host"`
	Winner    string                 `json:"winner"`
	WinnerID  string                 `json:"winner_id"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   time.Time              `json:"ended_at"`
	Rounds    []RoundSummary         `json:"rounds"`
	Standings []Standing             `json:"standings"`
}

// RoundSummary is one round of a Summary.
type RoundSummary struct {
	Round      int           `json:"round"`
	Word       string        `json:"word"`
	Eliminated []string      `json:"eliminated,omitempty"`
	Players    []PlayerRound `json:"players"`
}

// PlayerRound holds one player's board and score for a round.
type PlayerRound struct {
	PlayerID      string   `json:"player_id"`
	Name          string   `json:"name"`
	Guesses       []string `json:"guesses"`
	Score         int      `json:"score"`
	Solved        bool     `json:"solved"`
	SolvedAtGuess int      `json:"solved_at_guess,omitempty"`
}

// Standing is a player's final position.
type Standing struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Score       int    `json:"score"`
	Placement   int    `json:"placement"`
}
