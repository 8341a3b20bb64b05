package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation represents one logical chat exchange in the database.
// Multi-turn exchanges that share a conversation hash are merged into a
// single row by the continuity matcher.
type Conversation struct {
	ID               uuid.UUID `db:"id"`
	Model            string    `db:"model"`
	ConversationHash *string   `db:"conversation_hash"` // Pointer for nullable column
	LatencyMs        int64     `db:"latency_ms"`
	PromptTokens     int64     `db:"prompt_tokens"`
	CompletionTokens int64     `db:"completion_tokens"`
	TotalTokens      int64     `db:"total_tokens"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Message represents a single turn of a conversation. Messages are immutable
// once written; a resync of the parent conversation replaces the whole set.
type Message struct {
	ID             uuid.UUID       `db:"id"`
	ConversationID uuid.UUID       `db:"conversation_id"`
	Role           string          `db:"role"`          // "system", "user" or "assistant"
	Content        json.RawMessage `db:"content"`       // JSON string or array of ContentPart
	MessageIndex   int             `db:"message_index"` // Turn order within the conversation
	CreatedAt      time.Time       `db:"created_at"`
}

// OutboxEvent is an append-only record of a conversation mutation, written in
// the same transaction as the mutation itself so the relay cannot miss it.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	EventType     string          `db:"event_type"` // e.g. "conversation.upserted"
	AggregateType string          `db:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id"`
	Payload       json.RawMessage `db:"payload"`
	Attempts      int             `db:"attempts"`
	LockedAt      *time.Time      `db:"locked_at"`
	LockID        *string         `db:"lock_id"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}

// Valid message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IsValidRole reports whether role is one of the three known message roles.
func IsValidRole(role string) bool {
	return role == RoleSystem || role == RoleUser || role == RoleAssistant
}

// ContentPart is one element of a structured multimodal message body.
// Non-text parts reference uploaded media by object-storage key; the key is
// resolved to a short-lived signed URL only when results are returned.
type ContentPart struct {
	Type     string `json:"type"` // "text", "image", ...
	Text     string `json:"text,omitempty"`
	MediaKey string `json:"media_key,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"` // Signed URL, populated on read only
}

// FlattenContent interprets a raw message content value, which is either a
// plain JSON string or an array of multimodal parts. It returns the text
// content (text-typed parts joined with newlines) and, for structured input,
// the parsed parts. Unparseable content degrades to an empty string.
func FlattenContent(raw json.RawMessage) (string, []ContentPart) {
	if len(raw) == 0 {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil
	}

	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), parts
}
