package classify

import (
	"testing"
	"time"

	"carteira/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		due  core.Date
		paid bool
		ref  core.Date
		want Status
	}{
		{
			name: "paid wins over overdue dates",
			due:  core.NewDate(2025, 1, 1),
			paid: true,
			ref:  core.NewDate(2025, 6, 1),
			want: Paid,
		},
		{
			name: "paid wins over future due date",
			due:  core.NewDate(2026, 1, 1),
			paid: true,
			ref:  core.NewDate(2025, 6, 1),
			want: Paid,
		},
		{
			name: "due before reference - overdue",
			due:  core.NewDate(2025, 11, 1),
			paid: false,
			ref:  core.NewDate(2025, 11, 15),
			want: Overdue,
		},
		{
			name: "due on reference day - still open",
			due:  core.NewDate(2025, 11, 15),
			paid: false,
			ref:  core.NewDate(2025, 11, 15),
			want: Open,
		},
		{
			name: "due after reference - open",
			due:  core.NewDate(2025, 12, 1),
			paid: false,
			ref:  core.NewDate(2025, 11, 15),
			want: Open,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.due, tt.paid, tt.ref)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	due := core.Date{Time: time.Date(2025, 11, 15, 23, 0, 0, 0, time.UTC)}
	ref := core.Date{Time: time.Date(2025, 11, 15, 1, 0, 0, 0, time.UTC)}
	if got := Classify(due, false, ref); got != Open {
		t.Errorf("same day with later time classified %v, want Open", got)
	}
}

func TestForInstallment(t *testing.T) {
	ref := core.NewDate(2025, 11, 15)

	inst := core.Installment{DueDate: core.NewDate(2025, 11, 1), Status: core.StatusPending}
	if got := ForInstallment(inst, ref); got != Overdue {
		t.Errorf("pending past-due installment = %v, want Overdue", got)
	}

	inst.Status = core.StatusPaid
	if got := ForInstallment(inst, ref); got != Paid {
		t.Errorf("paid installment = %v, want Paid", got)
	}
}
