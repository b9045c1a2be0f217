// Package services orchestrates the domain packages over SQLite and AMQP.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// SyncPublisher enqueues movements for export. Nil-safe wrappers below let
// the services run without a broker.
type SyncPublisher interface {
	PublishMovementSync(ctx context.Context, id int64) error
}

// Dashboard is the aggregate view the app's home screen renders.
type Dashboard struct {
	TotalsByCategory map[core.Category]core.Money
	GrandTotal       core.Money
	NetBalance       core.Money
	Recent           []core.Movement
	Warnings         []ledger.Warning
}

// MovementService handles movement creation, import and the derived views.
type MovementService struct {
	repo      *storage.Repository
	publisher SyncPublisher
	logger    *log.Logger
}

func NewMovementService(repo *storage.Repository, publisher SyncPublisher, logger *log.Logger) *MovementService {
	return &MovementService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentMovement),
	}
}

// Create validates and persists a movement, then enqueues it for export.
// A publish failure is logged but never fails the request; the catch-up
// worker will pick the movement up later.
func (s *MovementService) Create(ctx context.Context, mv core.Movement) (core.Movement, error) {
	if err := s.repo.CreateMovement(ctx, &mv); err != nil {
		return core.Movement{}, fmt.Errorf("save movement: %w", err)
	}

	s.publishSync(ctx, mv.ID)

	s.logger.InfoContext(ctx, "movement created",
		log.NewFields().
			WithOwner(mv.OwnerID).
			WithOperation(log.OpCreate).
			WithMovement(mv.ID, string(mv.Direction), string(mv.Category), mv.Amount.Cents).
			ToSlice()...)
	return mv, nil
}

// Import decodes a raw snapshot (the mobile app's export format), persists
// every record that survives decoding and validation, and reports the rest
// as warnings. One bad record never aborts the batch.
func (s *MovementService) Import(ctx context.Context, ownerID string, payload []byte) ([]core.Movement, []ledger.Warning, error) {
	var raws []ledger.RawMovement
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode import payload: %w", err)
	}

	decoded, warnings := ledger.DecodeMovements(raws)

	// Decoding drops malformed records, so positions in decoded no longer
	// line up with the payload. Rebuild the original index for each survivor
	// so persistence warnings point at the right record.
	skipped := make(map[int]bool, len(warnings))
	for _, w := range warnings {
		skipped[w.Index] = true
	}
	srcIndex := make([]int, 0, len(decoded))
	for i := range raws {
		if !skipped[i] {
			srcIndex = append(srcIndex, i)
		}
	}

	var imported []core.Movement
	for i := range decoded {
		mv := decoded[i]
		mv.OwnerID = ownerID
		if err := s.repo.CreateMovement(ctx, &mv); err != nil {
			warnings = append(warnings, ledger.Warning{
				Index: srcIndex[i], ID: mv.ID, Field: "record", Reason: err.Error(),
			})
			continue
		}
		s.publishSync(ctx, mv.ID)
		imported = append(imported, mv)
	}

	s.logger.InfoContext(ctx, "import finished",
		log.FieldOwnerID, ownerID,
		"imported", len(imported),
		log.FieldWarnings, len(warnings))
	return imported, warnings, nil
}

// Recent returns up to limit of the owner's movements, newest first.
func (s *MovementService) Recent(ctx context.Context, ownerID string, limit int) ([]core.Movement, error) {
	movements, err := s.repo.ListMovementsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load movements: %w", err)
	}
	return ledger.RecentHistory(movements, limit), nil
}

// BuildDashboard aggregates the owner's full snapshot into the home view.
func (s *MovementService) BuildDashboard(ctx context.Context, ownerID string, recentLimit int) (Dashboard, error) {
	movements, err := s.repo.ListMovementsByOwner(ctx, ownerID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load movements: %w", err)
	}

	totals, warnings := ledger.TotalsByCategory(movements)
	grand, _ := ledger.GrandTotal(movements)
	net, _ := ledger.NetBalance(movements)

	if len(warnings) > 0 {
		s.logger.WarnContext(ctx, "dashboard skipped malformed records",
			log.FieldOwnerID, ownerID,
			log.FieldWarnings, len(warnings))
	}

	return Dashboard{
		TotalsByCategory: totals,
		GrandTotal:       grand,
		NetBalance:       net,
		Recent:           ledger.RecentHistory(movements, recentLimit),
		Warnings:         warnings,
	}, nil
}

func (s *MovementService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "no publisher configured, skipping sync message", log.FieldMovementID, id)
		return
	}
	if err := s.publisher.PublishMovementSync(ctx, id); err != nil {
		// Movement is already saved; the catch-up scan will retry the export.
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldMovementID, id,
			log.FieldError, err)
	}
}
