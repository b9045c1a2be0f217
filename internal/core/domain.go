package core

import (
	"errors"
	"strings"
	"time"
)

// Movement directions. A movement is money entering or leaving the wallet.
const (
	Entrada Direction = "entrada"
	Saida   Direction = "saida"
)

// Movement categories. Outros is the fallback bucket for anything the
// boundary could not recognize.
const (
	Fixa       Category = "fixa"
	Variavel   Category = "variavel"
	Parcelada  Category = "parcelada"
	Emprestimo Category = "emprestimo"
	Outros     Category = "outros"
)

// Plan kinds and loan directions.
const (
	Purchase PlanKind = "purchase"
	Loan     PlanKind = "loan"

	Borrowed LoanDirection = "borrowed"
	Lent     LoanDirection = "lent"
)

// Installment payment states. Paid is terminal.
const (
	StatusPending InstallmentStatus = "pending"
	StatusPaid    InstallmentStatus = "paid"
)

// Installment count ceilings per plan kind.
const (
	MaxPurchaseInstallments = 24
	MaxLoanInstallments     = 60
)

type (
	Direction         string
	Category          string
	PlanKind          string
	LoanDirection     string
	InstallmentStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Movement is a single dated income or expense record. Created once,
	// never updated or deleted.
	Movement struct {
		ID          int64
		OwnerID     string
		Direction   Direction
		Amount      Money
		Category    Category
		Description string
		Icon        string
		Date        Date
		CreatedAt   time.Time
	}

	// InstallmentPlan is a purchase or loan split into a fixed number of
	// installments. Immutable after creation.
	InstallmentPlan struct {
		ID            int64
		OwnerID       string
		Title         string
		Kind          PlanKind
		LoanDirection LoanDirection
		Total         Money
		Count         int
		Account       string
		Icon          string
		CreatedAt     time.Time
	}

	// Installment is one due obligation within a plan.
	Installment struct {
		ID      int64
		PlanID  int64
		OwnerID string
		Seq     int
		Amount  Money
		DueDate Date
		Status  InstallmentStatus
		PaidOn  Date
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidKind      = errors.New("invalid plan kind")
	ErrInvalidCount     = errors.New("installment count out of range")
	ErrEmptyOwner       = errors.New("empty owner id")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidDate      = errors.New("invalid date")
)

// NewDate creates a date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts ISO (2006-01-02) and the mobile app's dd/mm/yyyy form.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// DayBefore compares at date granularity, ignoring time-of-day.
func (d Date) DayBefore(other Date) bool {
	ay, am, ad := d.Date()
	by, bm, bd := other.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (dir Direction) Valid() bool {
	return dir == Entrada || dir == Saida
}

// Known reports whether the category is one of the named buckets.
func (c Category) Known() bool {
	switch c {
	case Fixa, Variavel, Parcelada, Emprestimo, Outros:
		return true
	}
	return false
}

// Normalize maps empty or unrecognized categories onto the fallback bucket.
func (c Category) Normalize() Category {
	if c.Known() {
		return c
	}
	return Outros
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MaxInstallments returns the installment ceiling for the plan kind.
func (k PlanKind) MaxInstallments() int {
	if k == Loan {
		return MaxLoanInstallments
	}
	return MaxPurchaseInstallments
}

func (mv Movement) Validate() error {
	if strings.TrimSpace(mv.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if !mv.Direction.Valid() {
		return ErrInvalidDirection
	}
	if err := mv.Amount.Validate(); err != nil {
		return err
	}
	// Description is free text and may be empty; the app never required it.
	if len(mv.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return mv.Date.Validate()
}

func (p InstallmentPlan) Validate() error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if len(p.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	switch p.Kind {
	case Purchase:
		if p.LoanDirection != "" {
			return errors.New("loan direction only valid for loans")
		}
	case Loan:
		if p.LoanDirection != Borrowed && p.LoanDirection != Lent {
			return errors.New("loan requires a direction (borrowed or lent)")
		}
	default:
		return ErrInvalidKind
	}
	if p.Total.Cents <= 0 {
		return ErrInvalidAmount
	}
	if p.Count < 1 || p.Count > p.Kind.MaxInstallments() {
		return ErrInvalidCount
	}
	return nil
}
