package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lounge-pos/api/internal/config"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/ledger"
	"github.com/lounge-pos/api/internal/logger"
	"github.com/lounge-pos/api/internal/prefs"
	"github.com/lounge-pos/api/internal/realtime"
	"github.com/lounge-pos/api/internal/router"
	"github.com/lounge-pos/api/internal/service"
	"github.com/lounge-pos/api/internal/session"
	"github.com/lounge-pos/api/internal/ws"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	queries := database.New(pool)

	var selections prefs.Store = prefs.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := prefs.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		selections = prefs.NewRedisStore(client)
		log.Info().Msg("selected tables persisted in redis")
	}

	var recorder ledger.Recorder = ledger.NewLogRecorder(log.Logger)
	if len(cfg.KafkaBrokers) > 0 {
		recorder = ledger.NewKafkaRecorder(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("sales published to kafka")
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warn().Err(err).Msg("close sale recorder")
		}
	}()

	broker := realtime.NewBroker()
	notifications := realtime.NewPGListener(cfg.DatabaseURL, broker)
	hub := ws.NewHub()

	barService := service.NewBarService(pool, pool, func(db database.DBTX) service.BarStore {
		return database.New(db)
	})
	sessions := session.NewManager(session.Deps{
		Orders:       queries,
		Fulfillments: queries,
		Broker:       broker,
		Bar:          barService,
		Prefs:        selections,
		Ledger:       recorder,
		Notify:       hub.Notify,
	})
	defer sessions.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, queries, pool, sessions, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return notifications.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
