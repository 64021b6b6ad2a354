// internal/database/game.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/kimlj/Multiwordle-sub000/internal/rating"
)

// ErrNotFound is returned when a requested game does not exist.
var ErrNotFound = errors.New("game not found")

// Store persists finished-game summaries and serves the read-only analytics queries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GameRow is one line of the recent games listing.
type GameRow struct {
	ID       uuid.UUID `json:"id"`
	RoomCode string    `json:"room_code"`
	Mode     string    `json:"mode"`
	Winner   string    `json:"winner"`
	Rounds   int       `json:"rounds"`
	Players  int       `json:"players"`
	EndedAt  time.Time `json:"ended_at"`
}

// LeaderRow aggregates a returning player's results, keyed by token fingerprint.
type LeaderRow struct {
	Fingerprint string  `json:"fingerprint"`
	Name        string  `json:"name"`
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
	TotalScore  int64   `json:"total_score"`
	Rating      float64 `json:"rating"`
}

// Record stores s in one transaction. Recording the same summary twice is a no-op.
func (s *Store) Record(ctx context.Context, sum analytics.Summary) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertSummaryTx(ctx, tx, sum)
	})
	if err != nil {
		return fmt.Errorf("record game %s: %w", sum.ID, err)
	}
	return nil
}

// RecordBatch stores every summary in a single transaction.
func (s *Store) RecordBatch(ctx context.Context, batch []analytics.Summary) error {
	if len(batch) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, sum := range batch {
			if err := insertSummaryTx(ctx, tx, sum); err != nil {
				return fmt.Errorf("game %s: %w", sum.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record batch of %d: %w", len(batch), err)
	}
	return nil
}

func insertSummaryTx(ctx context.Context, tx pgx.Tx, sum analytics.Summary) error {
	settings := sum.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO games (id, room_code, mode, settings, host, winner, winner_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, sum.ID, sum.RoomCode, sum.Mode, settings, sum.Host, sum.Winner, sum.WinnerID, sum.StartedAt, sum.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	for _, st := range sum.Standings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_players (game_id, player_id, name, fingerprint, score, placement)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sum.ID, st.PlayerID, st.Name, st.Fingerprint, st.Score, st.Placement); err != nil {
			return err
		}
	}
	if err := updateRatingsTx(ctx, tx, sum.Standings); err != nil {
		return fmt.Errorf("update ratings: %w", err)
	}
	for _, rd := range sum.Rounds {
		eliminated := rd.Eliminated
		if eliminated == nil {
			eliminated = []string{}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_rounds (game_id, round, word, eliminated) VALUES ($1, $2, $3, $4)
		`, sum.ID, rd.Round, rd.Word, eliminated); err != nil {
			return err
		}
		for _, pr := range rd.Players {
			guesses := pr.Guesses
			if guesses == nil {
				guesses = []string{}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO round_results (game_id, round, player_id, name, guesses, score, solved, solved_at_guess)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, sum.ID, rd.Round, pr.PlayerID, pr.Name, guesses, pr.Score, pr.Solved, pr.SolvedAtGuess); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateRatingsTx rates the game among its fingerprinted players. A fingerprint seen twice
// in one game counts once, at its best placement.
func updateRatingsTx(ctx context.Context, tx pgx.Tx, standings []analytics.Standing) error {
	best := make(map[string]int)
	var fps []string
	for _, st := range standings {
		if st.Fingerprint == "" {
			continue
		}
		prev, seen := best[st.Fingerprint]
		if !seen {
			fps = append(fps, st.Fingerprint)
		}
		if !seen || st.Placement < prev {
			best[st.Fingerprint] = st.Placement
		}
	}
	if len(fps) < 2 {
		return nil
	}

	rows, err := tx.Query(ctx, `
		SELECT fingerprint, rating, deviation, volatility
		FROM player_ratings WHERE fingerprint = ANY($1)
		FOR UPDATE
	`, fps)
	if err != nil {
		return err
	}
	current := make(map[string]rating.Rating, len(fps))
	for rows.Next() {
		var fp string
		var r rating.Rating
		if err := rows.Scan(&fp, &r.Value, &r.Deviation, &r.Volatility); err != nil {
			rows.Close()
			return err
		}
		current[fp] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	players := make([]rating.Rating, len(fps))
	placements := make([]int, len(fps))
	for i, fp := range fps {
		r, ok := current[fp]
		if !ok {
			r = rating.New()
		}
		players[i], placements[i] = r, best[fp]
	}
	batch := &pgx.Batch{}
	for i, r := range rating.Update(players, placements) {
		batch.Queue(`
			INSERT INTO player_ratings (fingerprint, rating, deviation, volatility, games, updated_at)
			VALUES ($1, $2, $3, $4, 1, NOW())
			ON CONFLICT (fingerprint) DO UPDATE
			SET rating = EXCLUDED.rating, deviation = EXCLUDED.deviation, volatility = EXCLUDED.volatility,
			    games = player_ratings.games + 1, updated_at = NOW()
		`, fps[i], r.Value, r.Deviation, r.Volatility)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ListGames returns the most recently finished games, newest first.
func (s *Store) ListGames(ctx context.Context, limit int) ([]GameRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.room_code, g.mode, g.winner, g.ended_at,
		       (SELECT COUNT(*) FROM game_rounds r WHERE r.game_id = g.id),
		       (SELECT COUNT(*) FROM game_players p WHERE p.game_id = g.id)
		FROM games g
		ORDER BY g.ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var r GameRow
		if err := rows.Scan(&r.ID, &r.RoomCode, &r.Mode, &r.Winner, &r.EndedAt, &r.Rounds, &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetGame rebuilds the full summary of one game.
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*analytics.Summary, error) {
	sum := analytics.Summary{ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT room_code, mode, settings, host, winner, winner_id, started_at, ended_at
		FROM games WHERE id = $1
	`, id).Scan(&sum.RoomCode, &sum.Mode, &sum.Settings, &sum.Host, &sum.Winner, &sum.WinnerID, &sum.StartedAt, &sum.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}

	standings, err := s.pool.Query(ctx, `
		SELECT player_id, name, fingerprint, score, placement
		FROM game_players WHERE game_id = $1
		ORDER BY placement, name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get standings: %w", err)
	}
	sum.Standings, err = pgx.CollectRows(standings, func(row pgx.CollectableRow) (analytics.Standing, error) {
		var st analytics.Standing
		err := row.Scan(&st.PlayerID, &st.Name, &st.Fingerprint, &st.Score, &st.Placement)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan standings: %w", err)
	}

	rounds, err := s.pool.Query(ctx, `
		SELECT round, word, eliminated FROM game_rounds WHERE game_id = $1 ORDER BY round
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get rounds: %w", err)
	}
	sum.Rounds, err = pgx.CollectRows(rounds, func(row pgx.CollectableRow) (analytics.RoundSummary, error) {
		var rd analytics.RoundSummary
		err := row.Scan(&rd.Round, &rd.Word, &rd.Eliminated)
		if len(rd.Eliminated) == 0 {
			rd.Eliminated = nil
		}
		return rd, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rounds: %w", err)
	}

	results, err := s.pool.Query(ctx, `
		SELECT round, player_id, name, guesses, score, solved, solved_at_guess
		FROM round_results WHERE game_id = $1
		ORDER BY round, score DESC, name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get round results: %w", err)
	}
	defer results.Close()
	byRound := make(map[int]int, len(sum.Rounds))
	for i, rd := range sum.Rounds {
		byRound[rd.Round] = i
	}
	for results.Next() {
		var round int
		var pr analytics.PlayerRound
		if err := results.Scan(&round, &pr.PlayerID, &pr.Name, &pr.Guesses, &pr.Score, &pr.Solved, &pr.SolvedAtGuess); err != nil {
			return nil, fmt.Errorf("scan round result: %w", err)
		}
		if i, ok := byRound[round]; ok {
			sum.Rounds[i].Players = append(sum.Rounds[i].Players, pr)
		}
	}
	if err := results.Err(); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Leaderboard ranks returning players by wins, then total score, and reports each one's
// skill rating. Players without a fingerprint are left out.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.fingerprint,
		       (ARRAY_AGG(p.name ORDER BY g.ended_at DESC))[1],
		       COUNT(*),
		       COUNT(*) FILTER (WHERE p.placement = 1),
		       COALESCE(SUM(p.score), 0),
		       COALESCE(MAX(r.rating), $2)
		FROM game_players p
		JOIN games g ON g.id = p.game_id
		LEFT JOIN player_ratings r ON r.fingerprint = p.fingerprint
		WHERE p.fingerprint <> ''
		GROUP BY p.fingerprint
		ORDER BY 4 DESC, 5 DESC, 1
		LIMIT $1
	`, limit, rating.DefaultRating)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LeaderRow, error) {
		var r LeaderRow
		err := row.Scan(&r.Fingerprint, &r.Name, &r.Games, &r.Wins, &r.TotalScore, &r.Rating)
		return r, err
	})
}
