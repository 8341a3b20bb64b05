package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chatvault-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// CreateMessageParams carries one message of an incoming exchange. The
// message index is assigned by position within the slice.
type CreateMessageParams struct {
	Role    string
	Content json.RawMessage
}

// CreateConversationParams contains parameters for creating a conversation
// together with its messages and the matching outbox event.
type CreateConversationParams struct {
	ID               uuid.UUID
	Model            string
	ConversationHash *string
	LatencyMs        int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Messages         []CreateMessageParams
}

// ResyncConversationParams contains parameters for extending an existing
// conversation with a continuing exchange. Messages is the full replacement
// set, not a delta; the stored messages are batch-replaced.
type ResyncConversationParams struct {
	ConversationID   uuid.UUID
	Model            string
	LatencyMs        int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Messages         []CreateMessageParams
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
//
// The *WithOutbox methods run the row mutation and the outbox append in one
// transaction; the outbox event cannot be written without the mutation or
// vice versa.
type Store interface {
	// Conversation operations
	CreateConversationWithOutbox(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	ResyncConversationWithOutbox(ctx context.Context, arg ResyncConversationParams) (*models.Conversation, error)
	DeleteConversationWithOutbox(ctx context.Context, id uuid.UUID) error
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindConversationByHash(ctx context.Context, hash string, since time.Time) (*models.Conversation, error)
	ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// Outbox operations
	FetchPendingOutboxEvents(ctx context.Context, lockTTL time.Duration, limit int) ([]models.OutboxEvent, error)
	ClaimOutboxEvent(ctx context.Context, id uuid.UUID, lockID string, lockTTL time.Duration) (bool, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID, lockID string) error
	ReleaseOutboxLock(ctx context.Context, id uuid.UUID, lockID string) error
}
