package main

import (
	"context"
	"os"

	"spendly/internal/amqp"
	"spendly/internal/cli"
	applog "spendly/internal/log"
	"spendly/internal/sheets"
	gsheet "spendly/internal/sheets/google"
	"spendly/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateWorkerConfig(logger)

	logger.Info("Starting spendly-worker", applog.FieldOperation, applog.OpStartup)

	var sheet sheets.AuditAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		if err := client.EnsureHeader(context.Background()); err != nil {
			logger.Warn("Could not verify audit sheet header", applog.FieldError, err.Error())
		}
		sheet = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets disabled, events are only logged")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(sheet, logger)
	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err.Error())
		}
		st := mirror.Stats()
		logger.Info("Mirror totals", "mirrored", st.Mirrored, "dropped", st.Dropped, "failed", st.Failed)
	})

	if err := mirror.Run(ctx, amqpClient); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
		_ = amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
