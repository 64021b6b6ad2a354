// cmd/historian/main.go drains finished-game summaries from the Redis queue into PostgreSQL.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kimlj/Multiwordle-sub000/internal/cache"
	"github.com/kimlj/Multiwordle-sub000/internal/config"
	"github.com/kimlj/Multiwordle-sub000/internal/database"
	"github.com/kimlj/Multiwordle-sub000/internal/historian"
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
	if cfg.Redis.Addr == "" || cfg.Database.URL == "" {
		logger.Fatal("historian needs both REDIS_ADDR and DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	svc := historian.New(cache.NewSummaryQueue(rdb, cfg.Redis.Queue), database.NewStore(pool), historian.Options{
		BatchSize:  cfg.Historian.BatchSize,
		FlushDelay: cfg.Historian.Flush,
		Logger:     logger.WithField("component", "historian"),
	})
	logger.Infof("historian draining %s (batch %d, flush %s)", cfg.Redis.Queue, cfg.Historian.BatchSize, cfg.Historian.Flush)
	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian: %v", err)
	}
}
