// cmd/server/main.go runs the game server: websocket gameplay, the session endpoint and
// the optional analytics API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/joho/godotenv/autoload"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/kimlj/Multiwordle-sub000/internal/auth"
	"github.com/kimlj/Multiwordle-sub000/internal/cache"
	"github.com/kimlj/Multiwordle-sub000/internal/config"
	"github.com/kimlj/Multiwordle-sub000/internal/database"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/kimlj/Multiwordle-sub000/internal/handlers"
	"github.com/kimlj/Multiwordle-sub000/internal/middleware"
	"github.com/kimlj/Multiwordle-sub000/internal/session"
	"github.com/kimlj/Multiwordle-sub000/internal/words"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dict := words.Default()
	if cfg.WordlistPath != "" {
		if dict, err = words.LoadFile(cfg.WordlistPath); err != nil {
			logger.Fatalf("load word list: %v", err)
		}
	}

	dispatcher := analytics.NewDispatcher(logger.WithField("component", "analytics"))
	var store *database.Store
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		dispatcher.Add(cache.NewSummaryQueue(rdb, cfg.Redis.Queue))
		logger.Infof("queueing game summaries on redis %s", cfg.Redis.Addr)
	}
	if cfg.NATS.URL != "" {
		nc, err := analytics.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatalf("nats: %v", err)
		}
		defer nc.Close()
		dispatcher.Add(analytics.NewNATSPublisher(nc, cfg.NATS.Subject))
		logger.Infof("publishing game summaries to %s", cfg.NATS.Subject)
	}
	if cfg.Database.URL != "" {
		if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		pool, err := database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		store = database.NewStore(pool)
		// With a queue in place the historian writes summaries; otherwise write them directly.
		if cfg.Redis.Addr == "" {
			dispatcher.Add(store)
		}
	}

	issuer, err := auth.NewIssuer(cfg.Auth.TokenExpire, nil)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}
	if cfg.Auth.FingerprintSecret == "" {
		logger.Warn("FINGERPRINT_SECRET is unset; player fingerprints are unkeyed")
	}
	fp := auth.NewFingerprinter(cfg.Auth.FingerprintSecret)

	clock := clockwork.NewRealClock()
	hub := handlers.NewHub(logger)
	reg := game.NewRegistry(game.Deps{
		Oracle:      dict,
		Broadcaster: hub,
		Recorder:    dispatcher,
		Clock:       clock,
		Logger:      logger.WithField("component", "game"),
		Timing:      game.Timing{Countdown: cfg.Countdown(), InterRound: cfg.InterRound()},
		Fingerprint: fp.Fingerprint,
	})
	mgr := session.NewManager(reg, hub, session.Options{
		Clock:  clock,
		Grace:  cfg.GraceWindow,
		Logger: logger.WithField("component", "session"),
	})
	reg.SetHoldCheck(mgr.HasPending)

	opts := handlers.Options{
		Issuer:         issuer,
		OriginPatterns: cfg.AllowedOrigins,
		RatePerSec:     cfg.RateLimit.PerSec,
		RateBurst:      cfg.RateLimit.Burst,
		Clock:          clock,
	}
	if store != nil {
		opts.Store = store
	}
	gs := handlers.NewGameServer(logger, reg, mgr, hub, opts)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	})
	handler := middleware.Recover(logger)(middleware.LogMiddleware(logger)(c.Handler(handlers.Routes(gs))))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdown(logger, srv, gs, dispatcher)
}

func shutdown(logger *logrus.Logger, srv *http.Server, gs *handlers.GameServer, dispatcher *analytics.Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Rooms close first so their final notices reach clients before sockets drop.
	gs.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warnf("analytics flush: %v", err)
	}
}
