package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"spendly/internal/auth"
	"spendly/internal/backend"
	"spendly/internal/cli"
	apphttp "spendly/internal/http"
	applog "spendly/internal/log"
	"spendly/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	infra, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	reports := services.NewReportService(infra.Store, infra.Stats)
	srv := apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.Deps{
		Accounts: services.NewUserService(infra.Store, issuer),
		Expenses: services.NewExpenseService(infra.Store, infra.Publisher, reports),
		Reports:  reports,
		Tokens:   issuer,
		Store:    infra.Store,
		Logger:   logger,
	}, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if err := infra.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err.Error())
		}
		m := srv.Metrics()
		logger.Info("Request totals", "requests", m.TotalRequests, "server_errors", m.ServerErrors)
	})

	logger.Info("Starting spendly server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		_ = infra.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
