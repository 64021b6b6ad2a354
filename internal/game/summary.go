// internal/game/summary.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
)

// summaryUnsafe builds the analytics record of the game that just ended.
func (r *Room) summaryUnsafe(now time.Time, standings []StandingEntry) analytics.Summary {
	s := analytics.Summary{
		ID:        uuid.New(),
		RoomCode:  r.Code,
		Mode:      string(r.settings.Mode),
		Settings:  r.settings.asMap(),
		StartedAt: r.startedAt,
		EndedAt:   now,
	}
	if host := r.playerByIDUnsafe(r.hostID); host != nil {
		s.Host = host.Name
	}
	if len(standings) > 0 {
		s.Winner = standings[0].Name
		s.WinnerID = standings[0].PlayerID
	}

	for _, res := range r.history {
		rs := analytics.RoundSummary{
			Round:      res.Round,
			Word:       res.Word,
			Eliminated: res.Eliminated,
		}
		for _, ps := range res.Players {
			rs.Players = append(rs.Players, analytics.PlayerRound{
				PlayerID:      ps.PlayerID,
				Name:          ps.Name,
				Guesses:       ps.Guesses,
				Score:         ps.Score,
				Solved:        ps.Solved,
				SolvedAtGuess: ps.SolvedAtGuess,
			})
		}
		s.Rounds = append(s.Rounds, rs)
	}

	for _, st := range standings {
		entry := analytics.Standing{
			PlayerID:  st.PlayerID,
			Name:      st.Name,
			Score:     st.TotalScore,
			Placement: st.Placement,
		}
		if p := r.playerByIDUnsafe(st.PlayerID); p != nil && r.deps.Fingerprint != nil {
			entry.Fingerprint = r.deps.Fingerprint(p.Token)
		}
		s.Standings = append(s.Standings, entry)
	}
	return s
}
