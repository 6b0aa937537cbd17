package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"finance/internal/amqp"
	"finance/internal/cli"
	"finance/internal/core"
	applog "finance/internal/log"
	gsheet "finance/internal/sheets/google"
	"finance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting finance-sync")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required by finance-sync")
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by finance-sync")
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	res := cli.InitBackend(initCtx, logger, cfg)
	sheetsClient, err := gsheet.New(initCtx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	// consumes only; its own mutations never happen here
	svc := cli.InitServices(logger, cfg, res.Backend, nil)
	level, _ := applog.ParseLevel(cfg.LogLevel)
	syncWorker := worker.NewSyncWorker(svc.Transactions, svc.Summary, sheetsClient,
		applog.New(applog.Config{Level: level, Component: applog.ComponentWorker, Output: os.Stdout}))

	// A consumer failure stops the process like a signal, then exits non-zero.
	runCtx, stop := context.WithCancelCause(context.Background())
	defer stop(nil)

	ctx, done := cli.GracefulShutdown(runCtx, logger, 30*time.Second, func() {
		m := sheetsClient.RateLimitMetrics()
		logger.Info("Sheets rate limit usage", "waits", m.TotalHits, "active_keys", m.ActiveKeys)
		sheetsClient.Close()
		svc.Close()
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	if user := os.Getenv("BACKFILL_USER_ID"); user != "" {
		backfill(ctx, logger, syncWorker, core.Scope{TenantID: cfg.DefaultTenantID, UserID: user})
	}

	go func() {
		err := amqpClient.ConsumeTransactionChanged(ctx, syncWorker.HandleTransactionChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			stop(err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	if err := context.Cause(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

// backfill exports the last BACKFILL_MONTHS months (default 12) of scope
// before consuming events, so the sheet is complete after a fresh start.
func backfill(ctx context.Context, logger *slog.Logger, w *worker.SyncWorker, scope core.Scope) {
	months := 12
	if v, err := strconv.Atoi(os.Getenv("BACKFILL_MONTHS")); err == nil && v > 0 {
		months = v
	}
	now := time.Now().UTC()
	from := core.NewDate(now.Year(), int(now.Month())-(months-1), 1)
	to := core.DateOf(now)

	n, err := w.Backfill(ctx, scope, from, to)
	if err != nil {
		logger.Error("Backfill failed", "error", err, "months_synced", n)
		return
	}
	logger.Info("Backfill done", "user_id", scope.UserID, "months_synced", n)
}
