package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lifei6671/userauth/internal/auth"
	"github.com/lifei6671/userauth/internal/config"
	"github.com/lifei6671/userauth/internal/database"
	"github.com/lifei6671/userauth/internal/logging"
	"github.com/lifei6671/userauth/internal/metrics"
	"github.com/lifei6671/userauth/internal/server"
	"github.com/lifei6671/userauth/internal/server/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	envErr := config.LoadEnvFile(config.EnvFile())

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("env file not loaded")
	}
	if cfg.Auth.EphemeralSecret {
		log.Warn().Msg("TOKEN_SECRET is empty, using a random key; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db := database.NewConnector(cfg.Database)
	stateNames := make([]string, len(database.States))
	for i, s := range database.States {
		stateNames[i] = s.String()
	}
	db.OnStateChange(func(s database.State) { m.SetDatabaseState(s.String(), stateNames...) })
	db.OnReady(auth.EnsureIndexes)
	go func() { _ = db.Connect(ctx) }()
	defer func() {
		shutdownCtx, cancel := shutdownContext(cfg)
		defer cancel()
		if err := db.Disconnect(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("database disconnect failed")
		}
	}()

	svc := auth.NewService(auth.NewMongoStore(db), auth.NewSigner([]byte(cfg.Auth.TokenSecret)), cfg.Auth)

	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)
	go limiter.Run(ctx, time.Minute)

	router := server.NewRouter(cfg, server.Deps{
		Auth:    auth.NewRouter(svc, m),
		Metrics: m,
		Limiter: limiter,
	})

	var ops http.Handler
	if cfg.OpsAddr != "" {
		ops = server.NewOpsRouter(db, m)
	}

	return server.New(cfg, router, ops).Run(ctx)
}

// shutdownContext bounds cleanup after the listeners stopped by SHUTDOWN_TIMEOUT.
func shutdownContext(cfg config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
}
