package amqp

import (
	"encoding/json"
	"time"
)

// MovementSyncMessage asks the worker to export one movement to the sheet.
// It carries only the ID; the worker fetches the full row from the database.
type MovementSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMovementSyncMessage(id int64) *MovementSyncMessage {
	return &MovementSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *MovementSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MovementSyncMessageFromJSON(data []byte) (*MovementSyncMessage, error) {
	var msg MovementSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// OverdueNotice announces that an installment passed its due date unpaid.
// Downstream consumers (push notifications, e-mail) only need these fields.
type OverdueNotice struct {
	InstallmentID int64     `json:"installment_id"`
	PlanID        int64     `json:"plan_id"`
	OwnerID       string    `json:"owner_id"`
	Seq           int       `json:"seq"`
	AmountCents   int64     `json:"amount_cents"`
	DueDate       string    `json:"due_date"`
	Timestamp     time.Time `json:"timestamp"`
}

func (n *OverdueNotice) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

func OverdueNoticeFromJSON(data []byte) (*OverdueNotice, error) {
	var notice OverdueNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		return nil, err
	}
	return &notice, nil
}
