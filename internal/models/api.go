package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// IngestMessage is one turn of an incoming exchange. Content is either a JSON
// string or an array of multimodal parts (see ContentPart).
type IngestMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// UsageInfo holds token accounting reported by the LLM provider.
type UsageInfo struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// IngestExchangeRequest defines the body for logging a completed exchange.
type IngestExchangeRequest struct {
	Model     string          `json:"model"`
	Messages  []IngestMessage `json:"messages"`
	LatencyMs int64           `json:"latency_ms"`
	Usage     *UsageInfo      `json:"usage,omitempty"`
}

// TimeRange restricts a search to a window of time. Preset takes precedence
// over the explicit bounds; "all" (or empty with no bounds) filters nothing.
type TimeRange struct {
	Preset string     `json:"preset,omitempty"` // "hour", "day", "month", "year", "all"
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// SearchRequest defines the body for the search endpoint.
type SearchRequest struct {
	Query     string     `json:"query"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	Size      int        `json:"size"`
	From      int        `json:"from"`
	Roles     []string   `json:"roles,omitempty"` // UI role checkboxes; empty means all
}

// --- Response Structs ---

// IngestExchangeResponse reports where an ingested exchange landed.
// Continued is true when the exchange was merged into an existing
// conversation by the continuity matcher.
type IngestExchangeResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Continued      bool      `json:"continued"`
}

// ConversationResponse is a conversation with its ordered messages.
type ConversationResponse struct {
	ID               uuid.UUID         `json:"id"`
	Model            string            `json:"model"`
	ConversationHash *string           `json:"conversation_hash,omitempty"`
	LatencyMs        int64             `json:"latency_ms"`
	Usage            UsageInfo         `json:"usage"`
	Messages         []MessageResponse `json:"messages"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MessageResponse is a single message as returned by the API.
type MessageResponse struct {
	Role         string          `json:"role"`
	Content      json.RawMessage `json:"content"`
	MessageIndex int             `json:"message_index"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SearchTotal mirrors the index's total-hits object.
type SearchTotal struct {
	Value int64 `json:"value"`
}

// SearchHit is one matched conversation document.
type SearchHit struct {
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    SearchDocument      `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// SearchHits is the hits envelope of a search response.
type SearchHits struct {
	Hits  []SearchHit `json:"hits"`
	Total SearchTotal `json:"total"`
}

// SearchResponse is the search endpoint's response shape. It is always
// well-formed: a failed search carries empty hits, zero took and a non-empty
// Error so clients can tell "no results" from "search degraded".
type SearchResponse struct {
	Hits  SearchHits `json:"hits"`
	Took  int64      `json:"took"`
	Error string     `json:"error,omitempty"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
