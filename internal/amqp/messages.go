package amqp

import (
	"encoding/json"
	"time"

	"budget/internal/core"
)

// ChangeMessage announces a transaction mutation. It carries identifiers only;
// consumers fetch the record from the ledger if they need it.
type ChangeMessage struct {
	Kind          core.ChangeKind `json:"kind"`
	TransactionID int64           `json:"transaction_id"`
	UserID        int64           `json:"user_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewChangeMessage(c core.Change) *ChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{
		Kind:          c.Kind,
		TransactionID: c.TransactionID,
		UserID:        c.UserID,
		Timestamp:     ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
