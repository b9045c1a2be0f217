// Package classify derives the display status of a payable record from its
// due date and payment flag. Status is recomputed from a caller-supplied
// reference date on every call instead of being stored, so it can never
// drift from the calendar.
package classify

import "carteira/internal/core"

// Status of a dated, payable record relative to a reference date.
type Status string

const (
	Paid    Status = "paid"
	Open    Status = "open"
	Overdue Status = "overdue"
)

// Classify returns Paid when paid is set regardless of dates, Overdue when
// the due date lies strictly before the reference date, Open otherwise.
// Comparison is at date granularity; time-of-day never matters. The
// reference date is an explicit parameter so the function stays
// deterministic. Callers pass "today" at the edge, never a hidden clock
// read in here.
func Classify(due core.Date, paid bool, reference core.Date) Status {
	if paid {
		return Paid
	}
	if due.DayBefore(reference) {
		return Overdue
	}
	return Open
}

// ForInstallment classifies an installment against the reference date.
func ForInstallment(inst core.Installment, reference core.Date) Status {
	return Classify(inst.DueDate, inst.Status == core.StatusPaid, reference)
}
