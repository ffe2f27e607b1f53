package models

import "time"

// AuditEvent represents a recorded authentication or user-lifecycle action.
type AuditEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "auth.login.success", "user.create"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	ActorID   *int      `json:"actorId,omitempty"` // Nullable for unauthenticated actions
	CreatedAt time.Time `json:"createdAt"`
}
