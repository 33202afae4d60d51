package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AtoyanMikhail/tasks-auth/internal/cache"
	"github.com/AtoyanMikhail/tasks-auth/internal/config"
	"github.com/AtoyanMikhail/tasks-auth/internal/credentials"
	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/metrics"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
	"github.com/AtoyanMikhail/tasks-auth/internal/token"
	transport "github.com/AtoyanMikhail/tasks-auth/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal(err.Error())
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal(err.Error())
	}
	logger.Initialize(level, os.Stdout)
	l := logger.Global()
	defer func() { _ = l.Sync() }()

	db, err := repository.Open(cfg.Database, l)
	if err != nil {
		l.Fatal("Failed to connect to database", logger.Error(err))
	}
	defer db.Close()

	if err := repository.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		l.Fatal("Failed to apply migrations", logger.Error(err))
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis, l)
	if err != nil {
		l.Fatal("Failed to connect to redis", logger.Error(err))
	}
	defer redisCache.Close()

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTokenTTL.Std(),
		RefreshTTL:    cfg.JWT.RefreshTokenTTL.Std(),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		l.Fatal("Invalid token configuration", logger.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sessions := repository.NewSessionRepository(db, l)
	principals := repository.NewPrincipalRepository(db, l)
	recorder := cache.NewSecurityRecorder(redisCache, cfg.Session.AttemptWindow.Std(), l)

	svc := session.NewService(codec, sessions, recorder, m, session.Config{
		MaxRefreshAttempts: cfg.Session.MaxRefreshAttempts,
	}, l)
	gateway := session.NewGateway(codec, principals, m, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := session.NewSweeper(sessions, cfg.Session.SweepInterval.Std(), m, l)
	go sweeper.Run(ctx)

	handler := transport.NewHandler(svc, principals, credentials.NewHasher(0), cfg.Cookie, l)
	router := transport.NewRouter(handler, gateway, transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Metrics:        m,
		Gatherer:       reg,
		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return redisCache.Ping(ctx)
		},
	}, l)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		l.Info("HTTP server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", logger.Error(err))
	}
}
