package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/opsprep/user-api/internal/models"
	"github.com/opsprep/user-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

// AuditServiceProvider defines the interface for the audit trail.
type AuditServiceProvider interface {
	Record(eventType, level, message string, actorID *int)
	Recent(limit int) ([]models.AuditEvent, error)
	PruneOlderThan(cutoff time.Time) (int64, error)
}

// AuditService persists auth and user-lifecycle events and pushes them onto
// the live event feed.
type AuditService struct {
	db  *sql.DB
	hub *websocket.Hub
}

// NewAuditService creates a new AuditService. hub may be nil, in which case
// events are persisted but not broadcast.
func NewAuditService(db *sql.DB, hub *websocket.Hub) *AuditService {
	return &AuditService{db: db, hub: hub}
}

// Record stores a new audit event and broadcasts it to feed subscribers.
// Audit failures are logged, never surfaced to API callers.
func (s *AuditService) Record(eventType, level, message string, actorID *int) {
	event := models.AuditEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		"INSERT INTO audit_events (id, type, level, message, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.ActorID, event.CreatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to record audit event")
		return
	}

	if s.hub != nil {
		s.hub.Broadcast <- websocket.NewAuditEventMessage(event)
	}
}

// Recent retrieves the most recent audit events.
func (s *AuditService) Recent(limit int) ([]models.AuditEvent, error) {
	rows, err := s.db.Query(
		"SELECT id, type, level, message, actor_id, created_at FROM audit_events ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.ActorID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PruneOlderThan deletes audit events created before cutoff and returns the
// number of rows removed.
func (s *AuditService) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM audit_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
