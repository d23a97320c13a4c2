package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// EventRepository handles trigger event database operations.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventRepository creates a new trigger event repository.
func NewEventRepository(db *sql.DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

const eventColumns = `
	id
  , event_type
  , resource_id
  , resource_type
  , user_id
  , timestamp
  , payload
  , processed
  , processing_attempts
  , error_message
`

// Save upserts a trigger event.
func (r *EventRepository) Save(ctx context.Context, event *models.TriggerEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return persistence.NewStoreError("Save", "event", event.ID,
			fmt.Errorf("failed to marshal payload: %w", err))
	}

	query := `
		INSERT INTO trigger_events
			(id, event_type, resource_id, resource_type, user_id, timestamp, payload, processed, processing_attempts, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			processed = EXCLUDED.processed,
			processing_attempts = EXCLUDED.processing_attempts,
			error_message = EXCLUDED.error_message
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.ResourceID,
		event.ResourceType,
		event.UserID,
		event.Timestamp,
		payloadJSON,
		event.Processed,
		event.ProcessingAttempts,
		event.ErrorMessage,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "event", event.ID, err)
	}

	return nil
}

// GetByID returns a trigger event by its ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.TriggerEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM trigger_events WHERE id = $1`

	event, err := r.scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "event", id, persistence.ErrEventNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "event", id, err)
	}

	return event, nil
}

// ListPending returns unprocessed events that still have attempts left,
// oldest first.
func (r *EventRepository) ListPending(ctx context.Context, maxAttempts int) ([]*models.TriggerEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM trigger_events
		WHERE processed = FALSE AND processing_attempts < $1
		ORDER BY timestamp`

	rows, err := r.db.QueryContext(ctx, query, maxAttempts)
	if err != nil {
		return nil, persistence.NewStoreError("ListPending", "event", "", err)
	}

	defer r.closeRows(ctx, rows)

	events := make([]*models.TriggerEvent, 0)

	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ListPending", "event", "", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListPending", "event", "", err)
	}

	return events, nil
}

// DeleteProcessedBefore purges processed events older than cutoff. Pending
// events are never touched regardless of age.
func (r *EventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM trigger_events WHERE processed = TRUE AND timestamp < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, persistence.NewStoreError("DeleteProcessedBefore", "event", "", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewStoreError("DeleteProcessedBefore", "event", "", err)
	}

	return int(rowsAffected), nil
}

func (r *EventRepository) scanEvent(scanner interface {
	Scan(dest ...any) error
}) (*models.TriggerEvent, error) {
	var (
		event       models.TriggerEvent
		payloadJSON []byte
	)

	err := scanner.Scan(
		&event.ID,
		&event.EventType,
		&event.ResourceID,
		&event.ResourceType,
		&event.UserID,
		&event.Timestamp,
		&payloadJSON,
		&event.Processed,
		&event.ProcessingAttempts,
		&event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &event, nil
}

func (r *EventRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
