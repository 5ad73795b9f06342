package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/custommls"
	server "github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/http_server"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/observability"
	redisad "github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/redis"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/repliers"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/app"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/ratelimit"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/shared"
	mysqlstore "github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	store := mysqlstore.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	primary, err := repliers.New(cfg.RepliersBase, cfg.RepliersKey, cfg.RepliersRegion, cfg.RepliersTimeout,
		ratelimit.PerMinute(cfg.RepliersRPM), cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Repliers client")
	}

	factory := func(id string, c domain.CustomProviderConfig, rl domain.Limiter) (domain.CustomProvider, error) {
		return custommls.New(id, c, rl, cache)
	}
	gw := app.NewGateway(repliers.ProviderID, cfg.RepliersRegion, primary, factory, store)

	restoreProviders(gw, store)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{G: gw, AdminKey: cfg.AdminKey})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// restoreProviders re-registers custom providers from the durable store. A
// provider that fails its connection test is skipped; its config stays stored
// so an operator can re-add it once the upstream recovers.
func restoreProviders(gw *app.Gateway, store *mysqlstore.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stored, err := store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("listing stored providers failed, starting with none")
		return
	}
	for id, cfg := range stored {
		if err := gw.AddCustomProvider(ctx, id, cfg); err != nil {
			log.Warn().Err(err).Str("provider", id).Msg("stored provider failed re-registration")
			continue
		}
		log.Info().Str("provider", id).Msg("stored provider restored")
	}
}
