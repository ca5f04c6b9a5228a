package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SyncRequestMessage asks a worker to run a full sync for one linked item.
// The worker resolves the credential itself; the message never carries it.
type SyncRequestMessage struct {
	ItemID      string    `json:"itemId"`
	RequestedAt time.Time `json:"requestedAt"`
}

var ErrMissingItemID = errors.New("sync request without item id")

func NewSyncRequestMessage(itemID string) *SyncRequestMessage {
	return &SyncRequestMessage{
		ItemID:      itemID,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes and validates a message body
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ItemID == "" {
		return nil, ErrMissingItemID
	}
	return &msg, nil
}
