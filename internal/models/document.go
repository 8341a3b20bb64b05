package models

import "time"

// SearchDocument is the denormalized projection of a conversation held in the
// search index, one document per conversation with nested per-turn messages.
// It is always rebuilt in full from the relational store, never patched, so
// re-running a projection converges to the same document.
type SearchDocument struct {
	ID               string            `json:"id"` // Same as the index _id (conversation id)
	Timestamp        time.Time         `json:"timestamp"`
	Model            string            `json:"model"`
	Messages         []DocumentMessage `json:"messages"`
	Usage            UsageInfo         `json:"usage"`
	Latency          int64             `json:"latency"`
	ConversationHash string            `json:"conversation_hash,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DocumentMessage is one nested message record inside a SearchDocument.
// Content holds the flattened text; multimodal parts ride along unindexed.
type DocumentMessage struct {
	Role              string        `json:"role"`
	Content           string        `json:"content"`
	MultimodalContent []ContentPart `json:"multimodal_content,omitempty"`
}
