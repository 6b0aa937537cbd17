package main

import (
	"context"
	"time"

	"finance/internal/cli"
	applog "finance/internal/log"
	"finance/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRecurring)
	logger.Info("Starting finance-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.RecurringLeadDays > 0 {
		services.RegisterLeadTime(cfg.RecurringLeadDays)
		logger.Info("Occurrences are created ahead of their date", "lead_days", cfg.RecurringLeadDays)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	amqpClient := cli.InitAMQP(logger, cfg)
	svc := cli.InitServices(logger, cfg, res.Backend, amqpClient)

	processor := services.NewRecurringProcessor(res.Backend, svc.Transactions, cfg.RecurringMaxCatchUp)
	scheduler := services.NewRecurringScheduler(processor, services.SchedulerConfig{Interval: cfg.RecurringInterval})

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
		svc.Close()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"max_catch_up", cfg.RecurringMaxCatchUp,
		"backend", cfg.DataBackend)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start recurring scheduler", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
}
