// internal/rating/rating.go
package rating

import "sort"

// Rating is a player's skill estimate on the display scale.
type Rating struct {
	Value      float64 `json:"value"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
}

// New returns the rating of a player with no recorded games.
func New() Rating {
	return Rating{Value: DefaultRating, Deviation: DefaultDeviation, Volatility: DefaultVolatility}
}

// Placements converts final placements (1 is best) into scores in [0..1]. The best
// placement gets 1, the worst 0, and tied players share the midpoint of their span.
func Placements(placements []int) []float64 {
	n := len(placements)
	scores := make([]float64, n)
	if n < 2 {
		return scores
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return placements[order[a]] < placements[order[b]] })

	for i := 0; i < n; {
		j := i + 1
		for j < n && placements[order[j]] == placements[order[i]] {
			j++
		}
		avgRank := float64(i+j-1) / 2
		frac := 1.0 - avgRank/float64(n-1)
		for k := i; k < j; k++ {
			scores[order[k]] = frac
		}
		i = j
	}
	return scores
}

// Update rates one finished game. players and placements are parallel; each player is
// scored against the average of everyone else. Games with fewer than two players leave
// ratings unchanged.
func Update(players []Rating, placements []int) []Rating {
	out := make([]Rating, len(players))
	copy(out, players)
	if len(players) < 2 || len(players) != len(placements) {
		return out
	}
	scores := Placements(placements)

	var total float64
	for _, p := range players {
		total += p.Value
	}
	for i, p := range players {
		opp := Rating{
			Value:      (total - p.Value) / float64(len(players)-1),
			Deviation:  DefaultDeviation,
			Volatility: DefaultVolatility,
		}
		out[i] = updateGlicko(toGlicko2(p), toGlicko2(opp), scores[i]).toRating()
	}
	return out
}
