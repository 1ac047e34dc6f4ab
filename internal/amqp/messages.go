package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Operation names carried by change messages.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationImport = "import"
)

// TransactionChangedMessage announces that an owner's ledger changed.
// It carries no transaction data; consumers reload the owner's snapshot.
type TransactionChangedMessage struct {
	OwnerID       string    `json:"owner_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Operation     string    `json:"operation"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionChangedMessage stamps a change message with the current time
func NewTransactionChangedMessage(owner string, id int64, op string) *TransactionChangedMessage {
	return &TransactionChangedMessage{
		OwnerID:       owner,
		TransactionID: id,
		Operation:     op,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangedMessageFromJSON decodes and checks a message body
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errors.New("message has no owner")
	}
	return &msg, nil
}
