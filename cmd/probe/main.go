package main

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/custommls"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/observability"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/repliers"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/ratelimit"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/shared"
	mysqlstore "github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/storage/mysql"
)

// Probes the primary provider and every stored custom provider with a
// bounded number of workers. Exits non-zero when any provider fails its
// connection test, so deploy pipelines can gate on provider connectivity.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().Int("workers", cfg.ProbeWorkers).Msg("provider probe starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	store := mysqlstore.New(db)
	stored, err := store.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("listing stored providers failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.ProbeWorkers))
	var (
		wg     sync.WaitGroup
		failed int32
	)

	// primary first; the stored customs follow through the worker pool
	if cfg.RepliersKey == "" {
		log.Warn().Msg("REPLIERS_API_KEY is empty, skipping primary probe")
	} else {
		primary, err := repliers.New(cfg.RepliersBase, cfg.RepliersKey, cfg.RepliersRegion, cfg.RepliersTimeout,
			ratelimit.PerMinute(cfg.RepliersRPM), nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Repliers client")
		}
		if primary.HealthCheck(ctx) {
			log.Info().Str("provider", repliers.ProviderID).Msg("probe ok")
		} else {
			atomic.AddInt32(&failed, 1)
			log.Warn().Str("provider", repliers.ProviderID).Msg("probe failed")
		}
	}

	for id, pc := range stored {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(id string, pc domain.CustomProviderConfig) {
			defer wg.Done()
			defer sem.Release(1)

			adapter, err := custommls.New(id, pc, ratelimit.PerMinute(pc.RateLimitRPM), nil)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				log.Warn().Str("provider", id).Err(err).Msg("probe rejected config")
				return
			}
			if err := adapter.TestConnection(ctx); err != nil {
				atomic.AddInt32(&failed, 1)
				log.Warn().Str("provider", id).Err(err).Msg("probe failed")
				return
			}
			log.Info().Str("provider", id).Msg("probe ok")
		}(id, pc)
	}

	wg.Wait()
	if n := atomic.LoadInt32(&failed); n > 0 {
		log.Error().Int32("failed", n).Msg("provider probe completed with failures")
		os.Exit(1)
	}
	log.Info().Msg("provider probe completed")
}
