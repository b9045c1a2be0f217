// Package schedule materializes installment schedules for purchases and
// loans: a principal and an installment count become an ordered, internally
// consistent set of pending installments ready for persistence.
//
// Due-date spacing uses the Strategy Pattern: each cadence encapsulates how
// the due date of installment i relates to the plan's start date.
package schedule

import (
	"fmt"

	"carteira/internal/core"
)

// Cadence names accepted by GetCadence.
const (
	SameDay CadenceName = "same-day"
	Monthly CadenceName = "monthly"
)

type CadenceName string

// Cadence is the strategy interface for installment due-date spacing.
type Cadence interface {
	// DueDate returns the due date for installment seq (1-based) of a plan
	// starting at start.
	DueDate(start core.Date, seq int) core.Date
}

// SameDayCadence stamps every installment with the start date. This mirrors
// the mobile app's observed behavior and is the default.
type SameDayCadence struct{}

func (SameDayCadence) DueDate(start core.Date, _ int) core.Date {
	return start
}

// MonthlyCadence advances the due date by one calendar month per installment,
// the first installment falling on the start date itself.
type MonthlyCadence struct{}

func (MonthlyCadence) DueDate(start core.Date, seq int) core.Date {
	return core.Date{Time: start.AddDate(0, seq-1, 0)}
}

// cadences maps cadence names to their strategies.
var cadences = map[CadenceName]Cadence{
	SameDay: SameDayCadence{},
	Monthly: MonthlyCadence{},
}

// GetCadence returns the cadence registered under name. The empty name
// resolves to the default same-day cadence.
func GetCadence(name CadenceName) (Cadence, error) {
	if name == "" {
		name = SameDay
	}
	c, ok := cadences[name]
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s", name)
	}
	return c, nil
}

// RegisterCadence registers a custom cadence, allowing extension without
// touching the generator.
func RegisterCadence(name CadenceName, c Cadence) {
	cadences[name] = c
}
