package amqp

import (
	"encoding/json"
	"time"
)

// Change event actions carried on the transaction event stream.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// TransactionEventMessage is a lightweight change notification for a
// transaction. It carries only the id and action; consumers fetch the
// full row from the store when they need it.
type TransactionEventMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEventMessage creates an event message stamped with the
// current time.
func NewTransactionEventMessage(id int64, action string) *TransactionEventMessage {
	return &TransactionEventMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes.
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
