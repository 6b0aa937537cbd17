package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finance/internal/core"
)

type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

const monthLayout = "2006-01"

// TransactionChangedMessage announces a mutation of a transaction.
// It carries only identifiers; consumers reload what they need.
type TransactionChangedMessage struct {
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Operation     Operation `json:"operation"`
	Month         string    `json:"month"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionChangedMessage builds a message for the month containing date.
func NewTransactionChangedMessage(scope core.Scope, transactionID string, op Operation, date core.Date) *TransactionChangedMessage {
	return &TransactionChangedMessage{
		TenantID:      scope.TenantID,
		UserID:        scope.UserID,
		TransactionID: transactionID,
		Operation:     op,
		Month:         date.Format(monthLayout),
		Timestamp:     time.Now(),
	}
}

// Scope returns the tenant and user the change belongs to.
func (m *TransactionChangedMessage) Scope() core.Scope {
	return core.Scope{TenantID: m.TenantID, UserID: m.UserID}
}

// MonthDate returns the first day of the affected month.
func (m *TransactionChangedMessage) MonthDate() (core.Date, error) {
	t, err := time.Parse(monthLayout, m.Month)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid month %q: %w", m.Month, err)
	}
	return core.DateOf(t), nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangedMessageFromJSON creates a message from JSON bytes
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("message is missing transaction_id or user_id")
	}
	return &msg, nil
}
