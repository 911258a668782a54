package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/agrilink/backend-agrilink/internal/app"
	"github.com/agrilink/backend-agrilink/internal/chat"
	"github.com/agrilink/backend-agrilink/internal/common"
	"github.com/agrilink/backend-agrilink/internal/config"
	"github.com/agrilink/backend-agrilink/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build dependencies")
	}
	defer deps.Close()

	if err := deps.DB.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping postgres")
	}

	notifier := &chat.Notifier{
		Store: chat.NewStore(deps.DB),
		Email: common.NopEmailSender{},
		Log:   logger,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(chat.TaskTypeMessageNotify, notifier.HandleMessageNotify)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("worker draining")
		deps.TaskServer.Shutdown()
	}()

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := deps.TaskServer.Run(mux); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
