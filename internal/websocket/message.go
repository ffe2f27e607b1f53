package websocket

import (
	"encoding/json"

	"github.com/opsprep/user-api/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewAuditEventMessage encodes an audit event for the live feed.
func NewAuditEventMessage(event models.AuditEvent) []byte {
	b, _ := json.Marshal(Message{Action: "audit_event", Payload: event})
	return b
}
