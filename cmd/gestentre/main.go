package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestentre/internal/auth"
	"gestentre/internal/config"
	"gestentre/internal/handler"
	"gestentre/internal/metrics"
	"gestentre/internal/service"
	"gestentre/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config; environment only when empty")

	flag.Parse()

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting gestentre api", slog.String("env", cfg.Env))

	if err := run(cfg, lgr); err != nil {
		lgr.Error("gestentre api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, lgr *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//INIT DB
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if cfg.DB.Migrate {
		if err := storage.Migrate(startCtx, cfg.DbURL); err != nil {
			return err
		}
		lgr.Info("migrations applied")
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DbURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Ping(startCtx); err != nil {
		return err
	}
	lgr.Info("database connection established")

	//INIT SERVICES
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	srvc, err := service.NewService(st, tokens, cfg.Auth.BcryptCost, lgr)
	if err != nil {
		return err
	}

	if cfg.Auth.BootstrapEmail != "" {
		created, err := srvc.EnsureAdmin(startCtx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapName, cfg.Auth.BootstrapPassword)
		if err != nil {
			return err
		}
		if created {
			lgr.Info("bootstrap admin created", slog.String("email", cfg.Auth.BootstrapEmail))
		}
	}

	//INIT SERVER
	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handler.NewHandler(srvc, lgr, metrics.New(), handler.Options{
		LoginRate:      cfg.Auth.LoginRate,
		LoginBurst:     cfg.Auth.LoginBurst,
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("http server starting", slog.String("address", cfg.HTTPServer.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
