package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies the database connection, used by readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const conversationColumns = `id, model, conversation_hash, latency_ms, prompt_tokens, completion_tokens, total_tokens, created_at, updated_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.Model,
		&c.ConversationHash,
		&c.LatencyMs,
		&c.PromptTokens,
		&c.CompletionTokens,
		&c.TotalTokens,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}
	return &c, nil
}

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    id, model, conversation_hash, latency_ms, prompt_tokens, completion_tokens, total_tokens
) VALUES (
    $1, $2, $3, $4, $5, $6, $7
)
RETURNING ` + conversationColumns + `;
`

const insertMessage = `-- name: InsertMessage :exec
INSERT INTO messages (
    id, conversation_id, role, content, message_index
) VALUES (
    $1, $2, $3, $4, $5
);
`

// CreateConversationWithOutbox inserts a conversation, its messages and the
// matching conversation.upserted outbox event in one transaction.
func (s *PostgresStore) CreateConversationWithOutbox(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, createConversation,
		id,
		arg.Model,
		arg.ConversationHash, // pgx handles *string to NULL automatically
		arg.LatencyMs,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.TotalTokens,
	)
	conv, err := scanConversation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Printf("ERROR [PostgresStore] CreateConversationWithOutbox: PostgreSQL error: Code=%s, Message=%s", pgErr.Code, pgErr.Message)
		}
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}

	if err := insertMessages(ctx, tx, conv.ID, arg.Messages); err != nil {
		return nil, err
	}

	if err := insertOutboxEvent(ctx, tx, models.EventConversationUpserted, conv.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit conversation transaction: %w", err)
	}

	log.Printf("[PostgresStore] CreateConversationWithOutbox: inserted conversation %s with %d messages", conv.ID, len(arg.Messages))
	return conv, nil
}

const updateConversationForResync = `-- name: UpdateConversationForResync :one
UPDATE conversations
SET model = $2, latency_ms = $3, prompt_tokens = $4, completion_tokens = $5, total_tokens = $6, updated_at = NOW()
WHERE id = $1
RETURNING ` + conversationColumns + `;
`

const deleteMessagesByConversation = `-- name: DeleteMessagesByConversation :exec
DELETE FROM messages
WHERE conversation_id = $1;
`

// ResyncConversationWithOutbox extends an existing conversation with a
// continuing exchange. The message set is batch-replaced with the full
// incoming turn list, and a conversation.upserted event is appended in the
// same transaction.
func (s *PostgresStore) ResyncConversationWithOutbox(ctx context.Context, arg store.ResyncConversationParams) (*models.Conversation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, updateConversationForResync,
		arg.ConversationID,
		arg.Model,
		arg.LatencyMs,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.TotalTokens,
	)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error updating conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, deleteMessagesByConversation, conv.ID); err != nil {
		return nil, fmt.Errorf("failed to clear messages for resync: %w", err)
	}
	if err := insertMessages(ctx, tx, conv.ID, arg.Messages); err != nil {
		return nil, err
	}

	if err := insertOutboxEvent(ctx, tx, models.EventConversationUpserted, conv.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit resync transaction: %w", err)
	}

	log.Printf("[PostgresStore] ResyncConversationWithOutbox: conversation %s now has %d messages", conv.ID, len(arg.Messages))
	return conv, nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1;
`

// DeleteConversationWithOutbox removes a conversation (messages cascade via
// foreign key) and appends the conversation.deleted event in the same
// transaction.
func (s *PostgresStore) DeleteConversationWithOutbox(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, deleteConversation, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if err := insertOutboxEvent(ctx, tx, models.EventConversationDeleted, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete transaction: %w", err)
	}

	log.Printf("[PostgresStore] DeleteConversationWithOutbox: deleted conversation %s", id)
	return nil
}

const getConversationByID = `-- name: GetConversationByID :one
SELECT ` + conversationColumns + `
FROM conversations
WHERE id = $1;
`

func (s *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRow(ctx, getConversationByID, id))
}

const findConversationByHash = `-- name: FindConversationByHash :one
SELECT ` + conversationColumns + `
FROM conversations
WHERE conversation_hash = $1 AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1;
`

// FindConversationByHash returns the most recent conversation carrying the
// given continuity hash created at or after since.
func (s *PostgresStore) FindConversationByHash(ctx context.Context, hash string, since time.Time) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRow(ctx, findConversationByHash, hash, since))
}

const listMessagesByConversation = `-- name: ListMessagesByConversation :many
SELECT id, conversation_id, role, content, message_index, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY message_index ASC;
`

func (s *PostgresStore) ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, listMessagesByConversation, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var items []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Role,
			&m.Content,
			&m.MessageIndex,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return items, nil
}

// insertMessages writes the message set for a conversation inside tx,
// assigning message_index from slice position.
func insertMessages(ctx context.Context, tx pgx.Tx, conversationID uuid.UUID, messages []store.CreateMessageParams) error {
	for i, m := range messages {
		if _, err := tx.Exec(ctx, insertMessage,
			uuid.New(),
			conversationID,
			m.Role,
			m.Content,
			i,
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	return nil
}
