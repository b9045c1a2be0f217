// Package storage persists movements, installment plans and installments in
// SQLite and tracks the export state of each movement.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"carteira/internal/core"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyPaid = errors.New("installment already paid")
)

// Repository wraps the SQLite connection pool.
type Repository struct {
	db *sql.DB
}

// Open connects to the SQLite database at path and verifies the connection.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepository wraps an existing connection, used by tests.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const movementColumns = "id, owner_id, direction, amount_cents, category, description, icon, date, created_at"

// CreateMovement inserts a movement and fills in its ID and CreatedAt.
func (r *Repository) CreateMovement(ctx context.Context, mv *core.Movement) error {
	if err := mv.Validate(); err != nil {
		return err
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	mv.Category = mv.Category.Normalize()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO movements (owner_id, direction, amount_cents, category, description, icon, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.OwnerID, string(mv.Direction), mv.Amount.Cents, string(mv.Category),
		mv.Description, mv.Icon, mv.Date.String(), mv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("movement id: %w", err)
	}
	mv.ID = id
	return nil
}

// GetMovement loads a single movement by ID.
func (r *Repository) GetMovement(ctx context.Context, id int64) (core.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE id = ?", id)
	mv, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, ErrNotFound
	}
	if err != nil {
		return core.Movement{}, fmt.Errorf("get movement %d: %w", id, err)
	}
	return mv, nil
}

// ListMovementsByOwner returns all of one owner's movements, newest first.
func (r *Repository) ListMovementsByOwner(ctx context.Context, ownerID string) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE owner_id = ? ORDER BY created_at DESC, id ASC",
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

// ListUnsyncedMovements returns movements not yet exported, oldest first,
// capped at limit.
func (r *Repository) ListUnsyncedMovements(ctx context.Context, limit int) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE synced_at IS NULL ORDER BY id ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

// MarkMovementSynced records a successful export and clears any prior error.
func (r *Repository) MarkMovementSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE movements SET synced_at = ?, sync_error = NULL WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark movement synced: %w", err)
	}
	return requireRow(res)
}

// MarkMovementSyncError records why the last export attempt failed.
func (r *Repository) MarkMovementSyncError(ctx context.Context, id int64, reason string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE movements SET sync_error = ? WHERE id = ?", reason, id)
	if err != nil {
		return fmt.Errorf("mark movement sync error: %w", err)
	}
	return requireRow(res)
}

// CreatePlanWithInstallments persists a plan and its full schedule in one
// transaction. The plan ID and each installment's ID and PlanID are filled in.
func (r *Repository) CreatePlanWithInstallments(ctx context.Context, plan *core.InstallmentPlan, installments []core.Installment) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if len(installments) != plan.Count {
		return fmt.Errorf("schedule has %d installments, plan expects %d", len(installments), plan.Count)
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO installment_plans (owner_id, title, kind, loan_direction, total_cents, installment_count, account, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.OwnerID, plan.Title, string(plan.Kind), string(plan.LoanDirection),
		plan.Total.Cents, plan.Count, plan.Account, plan.Icon,
		plan.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("plan id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments (plan_id, owner_id, seq, amount_cents, due_date, status)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare installment insert: %w", err)
	}
	defer stmt.Close()

	for i := range installments {
		inst := &installments[i]
		inst.PlanID = planID
		res, err := stmt.ExecContext(ctx,
			planID, inst.OwnerID, inst.Seq, inst.Amount.Cents,
			inst.DueDate.String(), string(inst.Status))
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Seq, err)
		}
		if inst.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("installment id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan: %w", err)
	}
	plan.ID = planID
	return nil
}

// GetPlan loads a plan by ID.
func (r *Repository) GetPlan(ctx context.Context, id int64) (core.InstallmentPlan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, kind, loan_direction, total_cents, installment_count, account, icon, created_at
		FROM installment_plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.InstallmentPlan{}, ErrNotFound
	}
	if err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("get plan %d: %w", id, err)
	}
	return plan, nil
}

// ListPlansByOwner returns one owner's plans, newest first.
func (r *Repository) ListPlansByOwner(ctx context.Context, ownerID string) ([]core.InstallmentPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, kind, loan_direction, total_cents, installment_count, account, icon, created_at
		FROM installment_plans WHERE owner_id = ? ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []core.InstallmentPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

const installmentColumns = "id, plan_id, owner_id, seq, amount_cents, due_date, status, paid_on"

// ListInstallmentsByPlan returns a plan's installments in sequence order.
func (r *Repository) ListInstallmentsByPlan(ctx context.Context, planID int64) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE plan_id = ? ORDER BY seq ASC",
		planID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()
	return collectInstallments(rows)
}

// GetInstallment loads a single installment by ID.
func (r *Repository) GetInstallment(ctx context.Context, id int64) (core.Installment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE id = ?", id)
	inst, err := scanInstallment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, ErrNotFound
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return inst, nil
}

// MarkInstallmentPaid transitions a pending installment to paid. Paid is
// terminal so a second call returns ErrAlreadyPaid.
func (r *Repository) MarkInstallmentPaid(ctx context.Context, id int64, paidOn core.Date) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE installments SET status = ?, paid_on = ? WHERE id = ? AND status = ?",
		string(core.StatusPaid), paidOn.String(), id, string(core.StatusPending))
	if err != nil {
		return fmt.Errorf("mark installment paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetInstallment(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyPaid
	}
	return nil
}

// ListUnnotifiedOverdue returns pending installments whose due date is
// strictly before reference and that have not been announced yet.
func (r *Repository) ListUnnotifiedOverdue(ctx context.Context, reference core.Date, limit int) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+installmentColumns+` FROM installments
		WHERE status = ? AND overdue_notified = 0 AND due_date < ?
		ORDER BY due_date ASC, id ASC LIMIT ?`,
		string(core.StatusPending), reference.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue installments: %w", err)
	}
	defer rows.Close()
	return collectInstallments(rows)
}

// MarkOverdueNotified records that an overdue notice was published.
func (r *Repository) MarkOverdueNotified(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE installments SET overdue_notified = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark overdue notified: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (core.Movement, error) {
	var (
		mv        core.Movement
		direction string
		category  string
		date      string
		createdAt string
	)
	if err := row.Scan(&mv.ID, &mv.OwnerID, &direction, &mv.Amount.Cents,
		&category, &mv.Description, &mv.Icon, &date, &createdAt); err != nil {
		return core.Movement{}, err
	}
	mv.Direction = core.Direction(direction)
	mv.Category = core.Category(category)

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %d date %q: %w", mv.ID, date, err)
	}
	mv.Date = d

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %d created_at %q: %w", mv.ID, createdAt, err)
	}
	mv.CreatedAt = t
	return mv, nil
}

func collectMovements(rows *sql.Rows) ([]core.Movement, error) {
	var movements []core.Movement
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func scanPlan(row rowScanner) (core.InstallmentPlan, error) {
	var (
		plan          core.InstallmentPlan
		kind          string
		loanDirection string
		createdAt     string
	)
	if err := row.Scan(&plan.ID, &plan.OwnerID, &plan.Title, &kind, &loanDirection,
		&plan.Total.Cents, &plan.Count, &plan.Account, &plan.Icon, &createdAt); err != nil {
		return core.InstallmentPlan{}, err
	}
	plan.Kind = core.PlanKind(kind)
	plan.LoanDirection = core.LoanDirection(loanDirection)

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("plan %d created_at %q: %w", plan.ID, createdAt, err)
	}
	plan.CreatedAt = t
	return plan, nil
}

func scanInstallment(row rowScanner) (core.Installment, error) {
	var (
		inst    core.Installment
		dueDate string
		status  string
		paidOn  sql.NullString
	)
	if err := row.Scan(&inst.ID, &inst.PlanID, &inst.OwnerID, &inst.Seq,
		&inst.Amount.Cents, &dueDate, &status, &paidOn); err != nil {
		return core.Installment{}, err
	}
	inst.Status = core.InstallmentStatus(status)

	d, err := core.ParseDate(dueDate)
	if err != nil {
		return core.Installment{}, fmt.Errorf("installment %d due_date %q: %w", inst.ID, dueDate, err)
	}
	inst.DueDate = d

	if paidOn.Valid && paidOn.String != "" {
		p, err := core.ParseDate(paidOn.String)
		if err != nil {
			return core.Installment{}, fmt.Errorf("installment %d paid_on %q: %w", inst.ID, paidOn.String, err)
		}
		inst.PaidOn = p
	}
	return inst, nil
}

func collectInstallments(rows *sql.Rows) ([]core.Installment, error) {
	var installments []core.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
