package ledger

import (
	"reflect"
	"testing"
	"time"

	"carteira/internal/core"
)

func mov(id int64, dir core.Direction, cents int64, cat core.Category, createdAt time.Time) core.Movement {
	return core.Movement{
		ID:        id,
		OwnerID:   "u1",
		Direction: dir,
		Amount:    core.Money{Cents: cents},
		Category:  cat,
		Date:      core.NewDate(2025, 11, 1),
		CreatedAt: createdAt,
	}
}

func TestAggregationsOnEmptySnapshot(t *testing.T) {
	if bal, warns := NetBalance(nil); bal.Cents != 0 || len(warns) != 0 {
		t.Errorf("NetBalance(nil) = %v, %v", bal, warns)
	}
	if totals, warns := TotalsByCategory(nil); len(totals) != 0 || len(warns) != 0 {
		t.Errorf("TotalsByCategory(nil) = %v, %v", totals, warns)
	}
	for _, limit := range []int{0, 1, 5} {
		if got := RecentHistory(nil, limit); len(got) != 0 {
			t.Errorf("RecentHistory(nil, %d) = %v", limit, got)
		}
	}
}

func TestNetBalanceAndTotals(t *testing.T) {
	now := time.Now()
	snapshot := []core.Movement{
		mov(1, core.Entrada, 100000, core.Outros, now),
		mov(2, core.Saida, 30000, core.Fixa, now),
		mov(3, core.Saida, 5000, core.Variavel, now),
	}

	bal, warns := NetBalance(snapshot)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if bal.Cents != 65000 {
		t.Errorf("NetBalance = %d cents, want 65000", bal.Cents)
	}

	totals, _ := TotalsByCategory(snapshot)
	want := map[core.Category]core.Money{
		core.Fixa:     {Cents: 30000},
		core.Variavel: {Cents: 5000},
	}
	if !reflect.DeepEqual(totals, want) {
		t.Errorf("TotalsByCategory = %v, want %v", totals, want)
	}

	grand, _ := GrandTotal(snapshot)
	if grand.Cents != 35000 {
		t.Errorf("GrandTotal = %d cents, want 35000 (categorized only)", grand.Cents)
	}
}

func TestAggregationsSkipMalformedRecords(t *testing.T) {
	now := time.Now()
	snapshot := []core.Movement{
		mov(1, core.Entrada, 100000, core.Fixa, now),
		mov(2, core.Saida, -500, core.Fixa, now),      // negative amount
		mov(3, "transfer", 2000, core.Variavel, now),  // unknown direction
		mov(4, core.Saida, 1000, core.Variavel, now),
	}

	bal, warns := NetBalance(snapshot)
	if bal.Cents != 99000 {
		t.Errorf("NetBalance = %d cents, want 99000", bal.Cents)
	}
	if len(warns) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warns), warns)
	}
	if warns[0].Field != "amount" || warns[0].ID != 2 {
		t.Errorf("first warning = %+v, want amount warning for id 2", warns[0])
	}
	if warns[1].Field != "direction" || warns[1].ID != 3 {
		t.Errorf("second warning = %+v, want direction warning for id 3", warns[1])
	}

	totals, warns2 := TotalsByCategory(snapshot)
	if len(warns2) != 2 {
		t.Errorf("TotalsByCategory warnings = %v, want 2", warns2)
	}
	if totals[core.Fixa].Cents != 100000 || totals[core.Variavel].Cents != 1000 {
		t.Errorf("totals corrupted by bad records: %v", totals)
	}
}

func TestRecentHistoryOrderingAndLimit(t *testing.T) {
	base := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	snapshot := []core.Movement{
		mov(3, core.Saida, 100, core.Fixa, base.Add(3*time.Minute)),
		mov(1, core.Entrada, 200, core.Fixa, base.Add(5*time.Minute)),
		mov(5, core.Saida, 300, core.Fixa, base.Add(1*time.Minute)),
		mov(2, core.Entrada, 400, core.Fixa, base.Add(4*time.Minute)),
		mov(4, core.Saida, 500, core.Fixa, base.Add(2*time.Minute)),
	}

	got := RecentHistory(snapshot, 2)
	if len(got) != 2 {
		t.Fatalf("got %d movements, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("RecentHistory ids = [%d %d], want [1 2]", got[0].ID, got[1].ID)
	}

	// Input order must be untouched.
	if snapshot[0].ID != 3 {
		t.Error("RecentHistory mutated its input snapshot")
	}

	// Idempotent and order-stable.
	again := RecentHistory(snapshot, 2)
	if !reflect.DeepEqual(got, again) {
		t.Error("repeated calls on the same snapshot differ")
	}

	if got := RecentHistory(snapshot, 0); len(got) != 0 {
		t.Errorf("limit 0 should yield empty, got %v", got)
	}
	if got := RecentHistory(snapshot, 100); len(got) != len(snapshot) {
		t.Errorf("limit beyond snapshot size should return all %d, got %d", len(snapshot), len(got))
	}
}

func TestRecentHistoryTieBreaksByID(t *testing.T) {
	at := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	snapshot := []core.Movement{
		mov(9, core.Saida, 1, core.Fixa, at),
		mov(2, core.Saida, 1, core.Fixa, at),
		mov(5, core.Saida, 1, core.Fixa, at),
	}
	got := RecentHistory(snapshot, 3)
	ids := []int64{got[0].ID, got[1].ID, got[2].ID}
	if !reflect.DeepEqual(ids, []int64{2, 5, 9}) {
		t.Errorf("tie-break ordering = %v, want [2 5 9]", ids)
	}
}
