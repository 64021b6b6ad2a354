// internal/handlers/game_server.go
package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/kimlj/Multiwordle-sub000/internal/auth"
	"github.com/kimlj/Multiwordle-sub000/internal/database"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/kimlj/Multiwordle-sub000/internal/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// AnalyticsStore serves the read-only analytics endpoints.
type AnalyticsStore interface {
	ListGames(ctx context.Context, limit int) ([]database.GameRow, error)
	GetGame(ctx context.Context, id uuid.UUID) (*analytics.Summary, error)
	Leaderboard(ctx context.Context, limit int) ([]database.LeaderRow, error)
}

// GameServer ties the room registry, session manager and connection hub together
// behind the websocket and HTTP handlers.
type GameServer struct {
	Registry *game.Registry
	Sessions *session.Manager
	Hub      *Hub
	Issuer   *auth.Issuer
	Store    AnalyticsStore

	OriginPatterns []string
	RatePerSec     float64
	RateBurst      int

	Logger *logrus.Logger
	Clock  clockwork.Clock
}

// Options configures NewGameServer. Issuer and Store are optional.
type Options struct {
	Issuer         *auth.Issuer
	Store          AnalyticsStore
	OriginPatterns []string
	RatePerSec     float64
	RateBurst      int
	Clock          clockwork.Clock
}

// NewGameServer wires a server around an existing registry, session manager and hub.
func NewGameServer(logger *logrus.Logger, reg *game.Registry, sessions *session.Manager, hub *Hub, opts Options) *GameServer {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if len(opts.OriginPatterns) == 0 {
		opts.OriginPatterns = []string{"*"}
	}
	return &GameServer{
		Registry:       reg,
		Sessions:       sessions,
		Hub:            hub,
		Issuer:         opts.Issuer,
		Store:          opts.Store,
		OriginPatterns: opts.OriginPatterns,
		RatePerSec:     opts.RatePerSec,
		RateBurst:      opts.RateBurst,
		Logger:         logger,
		Clock:          opts.Clock,
	}
}

func (gs *GameServer) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(gs.RatePerSec), gs.RateBurst)
}

// Shutdown closes every room, then every connection so the room-closed notices go out first.
func (gs *GameServer) Shutdown() {
	gs.Registry.CloseAll()
	gs.Sessions.Close()
	gs.Hub.CloseAll("server shutting down")
}
