package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"bolso/internal/assistant"
	"bolso/internal/backend"
	"bolso/internal/cli"
	"bolso/internal/core"
	apphttp "bolso/internal/http"
	"bolso/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	result, err := backend.Create(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// The current-month ceiling survives restarts by reseeding from the
	// latest stored expense month.
	sess, err := services.SeedSession(context.Background(), result.Store, core.MonthKeyOf(time.Now()))
	if err != nil {
		logger.Error("Failed to seed session", "error", err)
		os.Exit(1)
	}
	dispatcher := services.NewDispatcher(result.Store, result.Events, sess)

	var oracle assistant.Oracle
	if cfg.OpenAIAPIKey != "" {
		oracle = assistant.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		logger.Info("Assistant oracle initialized", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("No OPENAI_API_KEY set, chat endpoint disabled")
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Store, dispatcher, oracle)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting bolso server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"current_month", sess.Current().String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
