package schedule

import (
	"fmt"

	"carteira/internal/core"
)

// Generate splits principal into count pending installments starting at
// start. Installments 1..count-1 carry the half-up rounded even share; the
// last installment absorbs the rounding remainder so the amounts always sum
// to the principal exactly.
//
// The function is pure: it never touches storage, and on any validation
// failure it returns no installments at all.
func Generate(principal core.Money, count int, start core.Date, cadence Cadence) ([]core.Installment, error) {
	if principal.Cents <= 0 {
		return nil, fmt.Errorf("generate schedule: %w", core.ErrInvalidAmount)
	}
	// The domain-wide ceiling; GenerateForPlan additionally enforces the
	// tighter per-kind limit.
	if count < 1 || count > core.MaxLoanInstallments {
		return nil, fmt.Errorf("generate schedule: %w", core.ErrInvalidCount)
	}
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("generate schedule: %w", err)
	}
	if cadence == nil {
		cadence = SameDayCadence{}
	}

	share := roundedShare(principal.Cents, int64(count))

	out := make([]core.Installment, count)
	var allocated int64
	for i := 1; i <= count; i++ {
		amount := share
		if i == count {
			amount = principal.Cents - allocated
		}
		allocated += amount
		out[i-1] = core.Installment{
			Seq:     i,
			Amount:  core.Money{Cents: amount},
			DueDate: cadence.DueDate(start, i),
			Status:  core.StatusPending,
		}
	}
	return out, nil
}

// GenerateForPlan validates the plan and materializes its schedule, enforcing
// the per-kind installment ceiling. The plan's creation date is the schedule
// start.
func GenerateForPlan(plan core.InstallmentPlan, cadence Cadence) ([]core.Installment, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	start := core.DateOf(plan.CreatedAt)
	installments, err := Generate(plan.Total, plan.Count, start, cadence)
	if err != nil {
		return nil, err
	}
	for i := range installments {
		installments[i].PlanID = plan.ID
		installments[i].OwnerID = plan.OwnerID
	}
	return installments, nil
}

// roundedShare is cents/count rounded half-up, in integer arithmetic.
func roundedShare(cents, count int64) int64 {
	return (cents*2 + count) / (count * 2)
}
