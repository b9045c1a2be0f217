package worker

import (
	"context"
	"fmt"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// NoticePublisher announces overdue installments. Satisfied by the AMQP
// client; tests substitute a fake.
type NoticePublisher interface {
	PublishOverdueNotice(ctx context.Context, inst core.Installment) error
}

// OverdueScanner periodically looks for pending installments whose due date
// has passed and publishes one notice per installment. The notified flag in
// storage keeps notices from repeating across scans.
type OverdueScanner struct {
	repo      *storage.Repository
	publisher NoticePublisher
	batchSize int
	logger    *log.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewOverdueScanner(repo *storage.Repository, publisher NoticePublisher, batchSize int, logger *log.Logger) *OverdueScanner {
	return &OverdueScanner{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// Scan runs one pass: everything pending, unnotified and due strictly before
// today gets a notice. A publish failure leaves the flag unset so the next
// scan retries.
func (s *OverdueScanner) Scan(ctx context.Context) error {
	reference := core.DateOf(s.now())

	overdue, err := s.repo.ListUnnotifiedOverdue(ctx, reference, s.batchSize)
	if err != nil {
		return fmt.Errorf("list overdue installments: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	s.logger.InfoContext(ctx, "found overdue installments",
		log.FieldOperation, log.OpScan,
		"count", len(overdue))

	for _, inst := range overdue {
		if err := s.publisher.PublishOverdueNotice(ctx, inst); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish overdue notice",
				log.FieldPlanID, inst.PlanID,
				log.FieldSeq, inst.Seq,
				log.FieldError, err)
			continue
		}
		if err := s.repo.MarkOverdueNotified(ctx, inst.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark installment notified",
				log.FieldPlanID, inst.PlanID,
				log.FieldSeq, inst.Seq,
				log.FieldError, err)
		}
	}
	return nil
}
