package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/streamhouse/event-aggregator/internal/config"
	"github.com/streamhouse/event-aggregator/internal/httpserver"
	"github.com/streamhouse/event-aggregator/internal/ingest"
	"github.com/streamhouse/event-aggregator/internal/stats"
	"github.com/streamhouse/event-aggregator/internal/store"
)

// main boots the service: config → logging → store → schema → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg)

	var st store.Store
	if cfg.DBURL != "" {
		pg, err := store.NewPostgresStore(cfg.DBURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database unreachable")
		}
		defer pg.Close()

		// Ensure tables/indexes exist so `docker compose up --build` is enough.
		if err := pg.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("schema bootstrap failed")
		}
		st = pg
	} else {
		log.Warn().Msg("DB_URL not set, using in-memory store; events are not durable")
		st = store.NewMemoryStore()
	}

	eng := ingest.New(st, log)
	agg := stats.New(st)

	router := httpserver.NewRouter(cfg, st, eng, agg, log)

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Int("batch_size", cfg.BatchSize).
		Bool("auth", len(cfg.APIKeys) > 0).
		Msg("server started")

	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
