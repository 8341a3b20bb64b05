package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertOutbox = `-- name: InsertOutboxEvent :exec
INSERT INTO outbox_events (
    id, event_type, aggregate_type, aggregate_id, payload
) VALUES (
    $1, $2, $3, $4, $5
);
`

// insertOutboxEvent appends an event inside an open transaction so the event
// and the mutation it describes commit or roll back together.
func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, aggregateID uuid.UUID) error {
	payload, err := json.Marshal(map[string]string{"id": aggregateID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, insertOutbox,
		uuid.New(),
		eventType,
		models.AggregateTypeConversation,
		aggregateID,
		payload,
	); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

const outboxColumns = `id, event_type, aggregate_type, aggregate_id, payload, attempts, locked_at, lock_id, created_at, processed_at`

const fetchPendingOutboxEvents = `-- name: FetchPendingOutboxEvents :many
SELECT ` + outboxColumns + `
FROM outbox_events
WHERE processed_at IS NULL
  AND (locked_at IS NULL OR locked_at < $1)
ORDER BY created_at ASC
LIMIT $2;
`

// FetchPendingOutboxEvents returns unprocessed events whose lock is absent or
// older than the TTL, oldest first. Callers over-fetch and filter by shard.
func (s *PostgresStore) FetchPendingOutboxEvents(ctx context.Context, lockTTL time.Duration, limit int) ([]models.OutboxEvent, error) {
	expiry := time.Now().Add(-lockTTL)

	rows, err := s.db.Query(ctx, fetchPendingOutboxEvents, expiry, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying outbox events: %w", err)
	}
	defer rows.Close()

	var items []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(
			&e.ID,
			&e.EventType,
			&e.AggregateType,
			&e.AggregateID,
			&e.Payload,
			&e.Attempts,
			&e.LockedAt,
			&e.LockID,
			&e.CreatedAt,
			&e.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning outbox row: %w", err)
		}
		items = append(items, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}

	return items, nil
}

const claimOutboxEvent = `-- name: ClaimOutboxEvent :exec
UPDATE outbox_events
SET locked_at = NOW(), lock_id = $2, attempts = attempts + 1
WHERE id = $1
  AND processed_at IS NULL
  AND (locked_at IS NULL OR locked_at < $3);
`

// ClaimOutboxEvent attempts an atomic conditional claim. It returns false
// when another worker holds a live lock or already processed the event;
// losing the race is not an error.
func (s *PostgresStore) ClaimOutboxEvent(ctx context.Context, id uuid.UUID, lockID string, lockTTL time.Duration) (bool, error) {
	expiry := time.Now().Add(-lockTTL)

	tag, err := s.db.Exec(ctx, claimOutboxEvent, id, lockID, expiry)
	if err != nil {
		return false, fmt.Errorf("error claiming outbox event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const markOutboxProcessed = `-- name: MarkOutboxProcessed :exec
UPDATE outbox_events
SET processed_at = NOW()
WHERE id = $1 AND lock_id = $2 AND processed_at IS NULL;
`

func (s *PostgresStore) MarkOutboxProcessed(ctx context.Context, id uuid.UUID, lockID string) error {
	tag, err := s.db.Exec(ctx, markOutboxProcessed, id, lockID)
	if err != nil {
		return fmt.Errorf("error marking outbox event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The lock expired and someone else took over; their run will finish it.
		return store.ErrNotFound
	}
	return nil
}

const releaseOutboxLock = `-- name: ReleaseOutboxLock :exec
UPDATE outbox_events
SET locked_at = NULL, lock_id = NULL
WHERE id = $1 AND lock_id = $2 AND processed_at IS NULL;
`

// ReleaseOutboxLock frees a claim after a failed processing attempt, leaving
// the event eligible for immediate retry by any worker.
func (s *PostgresStore) ReleaseOutboxLock(ctx context.Context, id uuid.UUID, lockID string) error {
	if _, err := s.db.Exec(ctx, releaseOutboxLock, id, lockID); err != nil {
		return fmt.Errorf("error releasing outbox lock: %w", err)
	}
	return nil
}
