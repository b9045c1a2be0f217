package schedule

import (
	"errors"
	"testing"
	"time"

	"carteira/internal/core"
)

func TestGenerateSplitsPrincipalExactly(t *testing.T) {
	start := core.NewDate(2025, 10, 1)

	// 5000.00 over 3: two installments of 1666.67, last absorbs to 1666.66.
	got, err := Generate(core.Money{Cents: 500000}, 3, start, SameDayCadence{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCents := []int64{166667, 166667, 166666}
	if len(got) != len(wantCents) {
		t.Fatalf("got %d installments, want %d", len(got), len(wantCents))
	}
	for i, w := range wantCents {
		if got[i].Amount.Cents != w {
			t.Errorf("installment %d = %d cents, want %d", i+1, got[i].Amount.Cents, w)
		}
		if got[i].Seq != i+1 {
			t.Errorf("installment %d has seq %d", i+1, got[i].Seq)
		}
		if got[i].Status != core.StatusPending {
			t.Errorf("installment %d status = %q, want pending", i+1, got[i].Status)
		}
		if !got[i].DueDate.Equal(start.Time) {
			t.Errorf("installment %d due %v, want %v", i+1, got[i].DueDate, start)
		}
	}
}

func TestGenerateReconciliation(t *testing.T) {
	start := core.NewDate(2025, 1, 15)
	cases := []struct {
		cents int64
		count int
	}{
		{500000, 3},
		{100, 3},
		{1, 24},
		{99999, 7},
		{123456789, 60},
		{1000, 1},
		{149, 12},
	}
	for _, tc := range cases {
		got, err := Generate(core.Money{Cents: tc.cents}, tc.count, start, nil)
		if err != nil {
			t.Errorf("Generate(%d, %d): %v", tc.cents, tc.count, err)
			continue
		}
		var sum int64
		for _, inst := range got {
			sum += inst.Amount.Cents
		}
		if sum != tc.cents {
			t.Errorf("Generate(%d, %d): amounts sum to %d", tc.cents, tc.count, sum)
		}
		// All but the last carry the same share; the last differs by at most
		// the accumulated rounding.
		for i := 0; i < len(got)-1; i++ {
			if got[i].Amount != got[0].Amount {
				t.Errorf("Generate(%d, %d): installment %d share differs", tc.cents, tc.count, i+1)
			}
		}
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	start := core.NewDate(2025, 1, 1)

	if _, err := Generate(core.Money{Cents: 0}, 3, start, nil); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero principal: got %v, want ErrInvalidAmount", err)
	}
	if _, err := Generate(core.Money{Cents: -100}, 3, start, nil); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative principal: got %v, want ErrInvalidAmount", err)
	}
	if _, err := Generate(core.Money{Cents: 100}, 0, start, nil); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("zero count: got %v, want ErrInvalidCount", err)
	}
	if _, err := Generate(core.Money{Cents: 10000}, core.MaxLoanInstallments+1, start, nil); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("count above domain maximum: got %v, want ErrInvalidCount", err)
	}
	if _, err := Generate(core.Money{Cents: 10000}, 1000, start, nil); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("count 1000: got %v, want ErrInvalidCount", err)
	}
	if _, err := Generate(core.Money{Cents: 10000}, core.MaxLoanInstallments, start, nil); err != nil {
		t.Errorf("count at domain maximum should be accepted: %v", err)
	}
	if got, err := Generate(core.Money{Cents: 100}, 3, core.Date{}, nil); err == nil || got != nil {
		t.Errorf("zero start date: got (%v, %v), want error and no output", got, err)
	}
}

func TestGenerateForPlanEnforcesKindCeiling(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	plan := core.InstallmentPlan{
		ID:      7,
		OwnerID: "u1",
		Title:   "Geladeira",
		Kind:    core.Purchase,
		Total:   core.Money{Cents: 240000},
		Count:   24,
		CreatedAt: now,
	}
	got, err := GenerateForPlan(plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, inst := range got {
		if inst.PlanID != plan.ID || inst.OwnerID != plan.OwnerID {
			t.Fatalf("installment not bound to plan: %+v", inst)
		}
		if !inst.DueDate.Equal(core.NewDate(2025, 6, 1).Time) {
			t.Fatalf("due date %v, want plan creation date", inst.DueDate)
		}
	}

	plan.Count = 25
	if _, err := GenerateForPlan(plan, nil); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("purchase with 25 installments: got %v, want ErrInvalidCount", err)
	}

	loan := plan
	loan.Kind = core.Loan
	loan.LoanDirection = core.Borrowed
	loan.Count = 60
	if _, err := GenerateForPlan(loan, nil); err != nil {
		t.Errorf("loan with 60 installments should be accepted: %v", err)
	}
}

func TestMonthlyCadence(t *testing.T) {
	start := core.NewDate(2025, 1, 31)
	got, err := Generate(core.Money{Cents: 30000}, 3, start, MonthlyCadence{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wants := []core.Date{
		core.NewDate(2025, 1, 31),
		core.NewDate(2025, 3, 3), // Jan 31 + 1 month normalizes past February
		core.NewDate(2025, 3, 31),
	}
	for i, w := range wants {
		if !got[i].DueDate.Equal(w.Time) {
			t.Errorf("installment %d due %v, want %v", i+1, got[i].DueDate, w)
		}
	}
}

func TestGetCadence(t *testing.T) {
	if _, err := GetCadence(""); err != nil {
		t.Errorf("empty name should resolve to default: %v", err)
	}
	if _, err := GetCadence(Monthly); err != nil {
		t.Errorf("monthly should be registered: %v", err)
	}
	if _, err := GetCadence("fortnightly"); err == nil {
		t.Error("unknown cadence should error")
	}
}
