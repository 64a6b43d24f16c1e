package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/announce"
	appcfg "github.com/Erik-Lamers1/os3-rll-bot/internal/config"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/metrics"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/msgcat"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/obslog"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/pgstore"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	// Durable state: Postgres, or the in-memory store for local runs.
	var store ladder.Store
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store init error: %v", err)
		}
		store = pg
	} else {
		obslog.L().Warn("no DATABASE_URL set, running on the in-memory store")
		store = ladder.NewMemoryStore()
	}
	defer func() { _ = store.Close() }()

	mgr := ladder.NewManager(store)

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	builder := announce.NewBuilder(cat)

	var queue *announce.Queue
	if cfg.RedisURL != "" {
		queue, err = announce.NewQueue(cfg.RedisURL, cfg.AnnounceQueue)
		if err != nil {
			log.Fatalf("announce queue init error: %v", err)
		}
		defer func() { _ = queue.Close() }()
	} else {
		obslog.L().Warn("no REDIS_URL set, announcements disabled")
	}

	runner := sweep.New(mgr, builder, queue)
	if err := runner.Start(cfg.SweepInterval); err != nil {
		log.Fatalf("sweep init error: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			obslog.L().Error("metrics listener error", zap.Error(err))
		}
	}()

	obslog.L().Info("ladder bot ready",
		zap.String("guild", cfg.DiscordGuild),
		zap.String("channel", cfg.DiscordChannel),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = runner.Stop()
}
