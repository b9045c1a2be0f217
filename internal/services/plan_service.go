package services

import (
	"context"
	"fmt"
	"time"

	"carteira/internal/classify"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/schedule"
	"carteira/internal/storage"
)

// InstallmentView pairs a stored installment with its status as seen from a
// reference date. The status is derived per read, never stored.
type InstallmentView struct {
	core.Installment
	View classify.Status
}

// PlanService creates installment plans and tracks their payments.
type PlanService struct {
	repo   *storage.Repository
	logger *log.Logger
}

func NewPlanService(repo *storage.Repository, logger *log.Logger) *PlanService {
	return &PlanService{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentPlan),
	}
}

// CreatePlan generates the schedule for the plan and persists both in one
// transaction. The plan either lands complete or not at all.
func (s *PlanService) CreatePlan(ctx context.Context, plan core.InstallmentPlan, cadence schedule.CadenceName) (core.InstallmentPlan, []core.Installment, error) {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	strategy, err := schedule.GetCadence(cadence)
	if err != nil {
		return core.InstallmentPlan{}, nil, err
	}

	installments, err := schedule.GenerateForPlan(plan, strategy)
	if err != nil {
		return core.InstallmentPlan{}, nil, fmt.Errorf("generate schedule: %w", err)
	}

	if err := s.repo.CreatePlanWithInstallments(ctx, &plan, installments); err != nil {
		return core.InstallmentPlan{}, nil, fmt.Errorf("save plan: %w", err)
	}

	s.logger.InfoContext(ctx, "plan created",
		log.FieldOwnerID, plan.OwnerID,
		log.FieldPlanID, plan.ID,
		"kind", string(plan.Kind),
		"installments", len(installments))
	return plan, installments, nil
}

// ListPlans returns the owner's plans, newest first.
func (s *PlanService) ListPlans(ctx context.Context, ownerID string) ([]core.InstallmentPlan, error) {
	return s.repo.ListPlansByOwner(ctx, ownerID)
}

// Installments returns a plan's schedule with each installment classified
// against the reference date. Plans are owner-scoped; asking for another
// owner's plan reads as not found.
func (s *PlanService) Installments(ctx context.Context, ownerID string, planID int64, reference core.Date) ([]InstallmentView, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}

	installments, err := s.repo.ListInstallmentsByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load installments: %w", err)
	}

	views := make([]InstallmentView, len(installments))
	for i, inst := range installments {
		views[i] = InstallmentView{
			Installment: inst,
			View:        classify.ForInstallment(inst, reference),
		}
	}
	return views, nil
}

// Pay marks one installment as paid on the given date. Paid is terminal.
func (s *PlanService) Pay(ctx context.Context, ownerID string, installmentID int64, paidOn core.Date) (core.Installment, error) {
	inst, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return core.Installment{}, err
	}
	if inst.OwnerID != ownerID {
		return core.Installment{}, storage.ErrNotFound
	}

	if err := s.repo.MarkInstallmentPaid(ctx, installmentID, paidOn); err != nil {
		return core.Installment{}, err
	}

	s.logger.InfoContext(ctx, "installment paid",
		log.NewFields().
			WithOwner(ownerID).
			WithOperation(log.OpPay).
			WithPlan(inst.PlanID, inst.Seq).
			ToSlice()...)
	return s.repo.GetInstallment(ctx, installmentID)
}
