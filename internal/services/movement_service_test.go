package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

func testRepo(t *testing.T) *storage.Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "carteira.db")
	if err := storage.RunMigrations(dbPath); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	repo, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

type recordingPublisher struct {
	synced []int64
	err    error
}

func (p *recordingPublisher) PublishMovementSync(ctx context.Context, id int64) error {
	if p.err != nil {
		return p.err
	}
	p.synced = append(p.synced, id)
	return nil
}

func TestMovementService_Create(t *testing.T) {
	repo := testRepo(t)
	pub := &recordingPublisher{}
	svc := NewMovementService(repo, pub, testLogger())

	mv, err := svc.Create(context.Background(), core.Movement{
		OwnerID:   "u1",
		Direction: core.Saida,
		Amount:    core.Money{Cents: 2500},
		Category:  core.Variavel,
		Date:      core.NewDate(2025, 11, 10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mv.ID == 0 {
		t.Fatal("expected assigned ID")
	}
	if len(pub.synced) != 1 || pub.synced[0] != mv.ID {
		t.Errorf("published = %v, want [%d]", pub.synced, mv.ID)
	}
}

func TestMovementService_Create_PublishFailureIsNonFatal(t *testing.T) {
	repo := testRepo(t)
	pub := &recordingPublisher{err: context.DeadlineExceeded}
	svc := NewMovementService(repo, pub, testLogger())

	mv, err := svc.Create(context.Background(), core.Movement{
		OwnerID:   "u1",
		Direction: core.Entrada,
		Amount:    core.Money{Cents: 100},
		Date:      core.NewDate(2025, 11, 10),
	})
	if err != nil {
		t.Fatalf("create should survive publish failure: %v", err)
	}

	// The movement stays queued for the catch-up worker.
	pending, err := repo.ListUnsyncedMovements(context.Background(), 10)
	if err != nil {
		t.Fatalf("list unsynced: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != mv.ID {
		t.Errorf("unsynced = %+v, want the created movement", pending)
	}
}

func TestMovementService_Create_InvalidRejected(t *testing.T) {
	svc := NewMovementService(testRepo(t), nil, testLogger())
	_, err := svc.Create(context.Background(), core.Movement{
		OwnerID:   "u1",
		Direction: "transferencia",
		Amount:    core.Money{Cents: 100},
		Date:      core.NewDate(2025, 11, 10),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMovementService_Import(t *testing.T) {
	repo := testRepo(t)
	svc := NewMovementService(repo, nil, testLogger())

	payload := []byte(`[
		{"tipo_movimentacao": "entrada", "valor": "1000.00", "data": "01/11/2025", "criado_em": {"seconds": 1761955200, "nanoseconds": 0}},
		{"tipo_movimentacao": "saida", "valor": "abc", "data": "02/11/2025"},
		{"tipo_movimentacao": "saida", "valor": 49.9, "data": "03/11/2025", "categoria": "mercado", "descricao": "feira"}
	]`)

	imported, warnings, err := svc.Import(context.Background(), "u1", payload)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 2 {
		t.Fatalf("imported = %d, want 2", len(imported))
	}
	if len(warnings) != 1 || warnings[0].Field != "valor" {
		t.Errorf("warnings = %+v, want one valor warning", warnings)
	}

	stored, err := repo.ListMovementsByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored = %d, want 2", len(stored))
	}
	for _, mv := range stored {
		if mv.OwnerID != "u1" {
			t.Errorf("imported movement owner = %s, want u1", mv.OwnerID)
		}
	}
}

func TestMovementService_Import_WarningKeepsPayloadIndex(t *testing.T) {
	repo := testRepo(t)
	svc := NewMovementService(repo, nil, testLogger())

	// Record 0 fails decoding; record 1 decodes but fails validation when
	// persisted (description over the cap). Its warning must point at
	// position 1 of the payload, not at its position among the survivors.
	longDesc := strings.Repeat("x", 201)
	payload := []byte(`[
		{"tipo_movimentacao": "saida", "valor": "abc", "data": "01/11/2025"},
		{"tipo_movimentacao": "saida", "valor": "10.00", "data": "02/11/2025", "descricao": "` + longDesc + `"},
		{"tipo_movimentacao": "entrada", "valor": "20.00", "data": "03/11/2025"}
	]`)

	imported, warnings, err := svc.Import(context.Background(), "u1", payload)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("imported = %d, want 1", len(imported))
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %+v, want 2", warnings)
	}
	if warnings[0].Index != 0 || warnings[0].Field != "valor" {
		t.Errorf("decode warning = %+v, want index 0 field valor", warnings[0])
	}
	if warnings[1].Index != 1 || warnings[1].Field != "record" {
		t.Errorf("persistence warning = %+v, want index 1 field record", warnings[1])
	}
}

func TestMovementService_Import_BadPayload(t *testing.T) {
	svc := NewMovementService(testRepo(t), nil, testLogger())
	if _, _, err := svc.Import(context.Background(), "u1", []byte("{not an array")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMovementService_BuildDashboard(t *testing.T) {
	repo := testRepo(t)
	svc := NewMovementService(repo, nil, testLogger())
	ctx := context.Background()

	seed := []core.Movement{
		{OwnerID: "u1", Direction: core.Entrada, Amount: core.Money{Cents: 100000}, Date: core.NewDate(2025, 11, 1)},
		{OwnerID: "u1", Direction: core.Saida, Amount: core.Money{Cents: 30000}, Category: core.Fixa, Date: core.NewDate(2025, 11, 2)},
		{OwnerID: "u1", Direction: core.Saida, Amount: core.Money{Cents: 5000}, Category: core.Variavel, Date: core.NewDate(2025, 11, 3)},
		{OwnerID: "u2", Direction: core.Saida, Amount: core.Money{Cents: 99999}, Category: core.Fixa, Date: core.NewDate(2025, 11, 3)},
	}
	for i := range seed {
		if _, err := svc.Create(ctx, seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	dash, err := svc.BuildDashboard(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.NetBalance.Cents != 65000 {
		t.Errorf("net balance = %d, want 65000", dash.NetBalance.Cents)
	}
	if dash.GrandTotal.Cents != 35000 {
		t.Errorf("grand total = %d, want 35000", dash.GrandTotal.Cents)
	}
	if dash.TotalsByCategory[core.Fixa].Cents != 30000 {
		t.Errorf("fixa total = %d, want 30000", dash.TotalsByCategory[core.Fixa].Cents)
	}
	if len(dash.Recent) != 2 {
		t.Errorf("recent = %d, want 2", len(dash.Recent))
	}
}
