// Package worker runs the background jobs: exporting movements to the sheet
// and scanning for installments that slipped past their due date.
package worker

import (
	"context"
	"fmt"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/export/gsheet"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// SyncWorker exports movements from SQLite to the Google sheet. It consumes
// AMQP messages for the hot path and periodically sweeps the database for
// movements whose message was lost.
type SyncWorker struct {
	repo      *storage.Repository
	sheet     gsheet.Writer
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(repo *storage.Repository, sheet gsheet.Writer, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		repo:      repo,
		sheet:     sheet,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage exports the movement named by one AMQP message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.MovementSyncMessage) error {
	mv, err := w.repo.GetMovement(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get movement from storage: %w", err)
	}
	return w.export(ctx, mv.ID, mv)
}

// ProcessPendingMovements sweeps unexported movements up to the batch size.
// This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingMovements(ctx context.Context) error {
	pending, err := w.repo.ListUnsyncedMovements(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending movements: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending movements", "count", len(pending))

	for _, mv := range pending {
		if err := w.export(ctx, mv.ID, mv); err != nil {
			w.logger.ErrorContext(ctx, "failed to sync movement",
				log.FieldMovementID, mv.ID,
				log.FieldError, err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains a larger backlog once at worker startup to recover
// from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.repo.ListUnsyncedMovements(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending movements for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "no pending movements found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "found pending movements on startup", "count", len(pending))

	synced, failed := 0, 0
	for _, mv := range pending {
		if err := w.export(ctx, mv.ID, mv); err != nil {
			w.logger.ErrorContext(ctx, "failed to sync movement during startup",
				log.FieldMovementID, mv.ID,
				log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) export(ctx context.Context, id int64, mv core.Movement) error {
	ref, err := w.sheet.AppendMovement(ctx, mv)
	if err != nil {
		if markErr := w.repo.MarkMovementSyncError(ctx, id, err.Error()); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to record sync error",
				log.FieldMovementID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.repo.MarkMovementSynced(ctx, id); err != nil {
		// The row is already on the sheet; only the local bookkeeping failed.
		w.logger.ErrorContext(ctx, "failed to mark movement as synced",
			log.FieldMovementID, id,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "movement synced",
		log.FieldMovementID, id,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, mv.Amount.Cents)
	return nil
}
