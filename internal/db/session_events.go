package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Session Event Methods
// -----------------------------------------------------------------------------

// RecordSessionEvent appends an audit event for a wizard session
func (db *DB) RecordSessionEvent(ctx context.Context, sessionID uuid.UUID, input *SessionEventInput) (*SessionEvent, error) {
	var payloadJSON []byte
	if input.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(input.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	event := SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Step:      input.Step,
		Event:     input.Event,
		Payload:   input.Payload,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO session_events (id, session_id, step, event, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		event.ID, sessionID, input.Step, input.Event, payloadJSON,
	).Scan(&event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record session event: %w", err)
	}

	return &event, nil
}

// ListSessionEvents retrieves the events of a session in the order they happened
func (db *DB) ListSessionEvents(ctx context.Context, sessionID uuid.UUID) ([]SessionEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, session_id, step, event, payload, created_at
		 FROM session_events
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var event SessionEvent
		var payloadJSON []byte

		if err := rows.Scan(&event.ID, &event.SessionID, &event.Step, &event.Event,
			&payloadJSON, &event.CreatedAt); err != nil {
			return nil, err
		}

		if payloadJSON != nil {
			_ = json.Unmarshal(payloadJSON, &event.Payload)
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
