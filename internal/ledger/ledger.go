// Package ledger turns a flat snapshot of movements into the derived views
// the app displays: per-category totals, grand total, net balance and a
// bounded recent-history list.
//
// Every function is pure and operates on the one snapshot it is handed; the
// caller re-invokes on each new snapshot instead of the ledger holding any
// state. Sums accumulate in integer cents only. A malformed record never
// aborts an aggregation: it is skipped and reported as a Warning so the rest
// of the snapshot still produces numbers.
package ledger

import (
	"fmt"
	"sort"

	"carteira/internal/core"
)

// Warning is a diagnostic for a record skipped during aggregation or decode.
type Warning struct {
	Index  int    // position in the input snapshot
	ID     int64  // movement id when known, 0 otherwise
	Field  string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d (id %d): %s: %s", w.Index, w.ID, w.Field, w.Reason)
}

// namedCategories are the buckets that appear in per-category totals.
// Anything else (including the outros fallback) stays out of named totals.
var namedCategories = []core.Category{core.Fixa, core.Variavel, core.Parcelada, core.Emprestimo}

// TotalsByCategory sums movement amounts per named category. Movements with
// an unrecognized or empty category are excluded from the result; malformed
// records are skipped with a warning.
func TotalsByCategory(movements []core.Movement) (map[core.Category]core.Money, []Warning) {
	totals := make(map[core.Category]core.Money)
	warnings := vet(movements, func(i int, mv core.Movement) {
		for _, c := range namedCategories {
			if mv.Category == c {
				totals[c] = core.Money{Cents: totals[c].Cents + mv.Amount.Cents}
				return
			}
		}
	})
	return totals, warnings
}

// GrandTotal sums the amounts of all movements carrying a named category.
// It equals the sum of the TotalsByCategory buckets by construction.
func GrandTotal(movements []core.Movement) (core.Money, []Warning) {
	var total int64
	warnings := vet(movements, func(i int, mv core.Movement) {
		for _, c := range namedCategories {
			if mv.Category == c {
				total += mv.Amount.Cents
				return
			}
		}
	})
	return core.Money{Cents: total}, warnings
}

// NetBalance is sum(entradas) - sum(saidas) over the whole snapshot,
// categorized or not. The sign convention is fixed: entries increase the
// balance, exits decrease it.
func NetBalance(movements []core.Movement) (core.Money, []Warning) {
	var balance int64
	warnings := vet(movements, func(i int, mv core.Movement) {
		if mv.Direction == core.Entrada {
			balance += mv.Amount.Cents
		} else {
			balance -= mv.Amount.Cents
		}
	})
	return core.Money{Cents: balance}, warnings
}

// RecentHistory returns up to limit movements, newest first. The ordering
// key is the server-assigned creation timestamp descending, with identifier
// ascending as the tie-break, so repeated calls on the same snapshot yield
// identical sequences. A limit of zero (or less) yields an empty slice.
func RecentHistory(movements []core.Movement, limit int) []core.Movement {
	if limit <= 0 || len(movements) == 0 {
		return []core.Movement{}
	}
	out := make([]core.Movement, len(movements))
	copy(out, movements)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// vet walks the snapshot, invoking keep for every well-formed movement and
// collecting a warning for every malformed one. Partial failure by design:
// one bad record never blocks the others.
func vet(movements []core.Movement, keep func(i int, mv core.Movement)) []Warning {
	var warnings []Warning
	for i, mv := range movements {
		if mv.Amount.Cents < 0 {
			warnings = append(warnings, Warning{Index: i, ID: mv.ID, Field: "amount", Reason: "negative amount"})
			continue
		}
		if !mv.Direction.Valid() {
			warnings = append(warnings, Warning{Index: i, ID: mv.ID, Field: "direction", Reason: fmt.Sprintf("unknown direction %q", mv.Direction)})
			continue
		}
		keep(i, mv)
	}
	return warnings
}
