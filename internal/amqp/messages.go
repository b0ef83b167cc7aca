package amqp

import (
	"encoding/json"
	"time"

	"finflow/internal/core"
)

// UpdateMessage announces that a domain changed in the process identified
// by Origin. It carries no record data; receivers refetch what they need.
type UpdateMessage struct {
	Domain    core.Domain `json:"domain"`
	UserID    int64       `json:"userId,omitempty"`
	Origin    string      `json:"origin"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewUpdateMessage creates a message stamped with the current time.
func NewUpdateMessage(domain core.Domain, userID int64, origin string) *UpdateMessage {
	return &UpdateMessage{
		Domain:    domain,
		UserID:    userID,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *UpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UpdateMessageFromJSON decodes a message.
func UpdateMessageFromJSON(data []byte) (*UpdateMessage, error) {
	var msg UpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
