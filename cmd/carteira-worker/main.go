package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/config"
	"carteira/internal/export/gsheet"
	"carteira/internal/log"
	"carteira/internal/storage"
	"carteira/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("starting carteira-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		logger.Error("migrations failed", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sheets export is optional; without it only the overdue scanner runs.
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			logger.Error("failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSyncQueue, cfg.AMQPNotifyQueue, logger)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	scanner := worker.NewOverdueScanner(repo, amqpClient, cfg.SyncBatchSize, logger)

	var syncWorker *worker.SyncWorker
	if sheetsClient != nil {
		syncWorker = worker.NewSyncWorker(repo, sheetsClient, cfg.SyncBatchSize, logger)

		logger.Info("performing startup sync check")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			// Not fatal: the periodic sweep retries.
			logger.Error("startup sync check failed", log.FieldError, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if syncWorker != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeMovementSync(ctx, func(msg *amqp.MovementSyncMessage) error {
				return syncWorker.HandleSyncMessage(ctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		g.Go(func() error {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := syncWorker.ProcessPendingMovements(ctx); err != nil {
						logger.Error("periodic sync failed", log.FieldError, err)
					}
				}
			}
		})
	} else {
		logger.Info("skipping sheet sync, no client available")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.OverdueScanInterval)
		defer ticker.Stop()

		// One scan at startup so a restart never delays notices by a full
		// interval.
		if err := scanner.Scan(ctx); err != nil {
			logger.Error("overdue scan failed", log.FieldError, err)
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := scanner.Scan(ctx); err != nil {
					logger.Error("overdue scan failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker shutdown complete")
}
