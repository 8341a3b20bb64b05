package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"chatvault-backend/internal/models"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// indexMapping declares the conversation document schema. Messages are a
// nested field so per-turn records stay queryable as first-class records;
// multimodal sidecars are stored but not indexed.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id": {"type": "keyword"},
      "timestamp": {"type": "date"},
      "model": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "latency": {"type": "long"},
      "conversation_hash": {"type": "keyword"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"},
      "usage": {
        "properties": {
          "prompt_tokens": {"type": "long"},
          "completion_tokens": {"type": "long"},
          "total_tokens": {"type": "long"}
        }
      },
      "messages": {
        "type": "nested",
        "properties": {
          "role": {"type": "keyword"},
          "content": {"type": "text"},
          "multimodal_content": {"type": "object", "enabled": false}
        }
      }
    }
  }
}`

// ClientConfig holds the connection settings for the search index.
type ClientConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Timeout   time.Duration
}

// Client talks to the OpenSearch index holding conversation documents. It is
// constructed once at startup and passed to its owners; there is no package
// level connection state.
type Client struct {
	os      *opensearch.Client
	index   string
	timeout time.Duration
}

// NewClient builds an index client from config.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("search: index name must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Client{os: osClient, index: cfg.Index, timeout: timeout}, nil
}

// Ping verifies the index is reachable, used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := opensearchapi.PingRequest{}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("search index ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search index ping returned status %d", res.StatusCode)
	}
	return nil
}

// EnsureIndex creates the conversations index with its mapping if it does
// not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}
	if exists.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d checking index %q", exists.StatusCode, c.index)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("creating index %q returned status %d", c.index, res.StatusCode)
	}

	log.Printf("[SearchClient] Created index %q", c.index)
	return nil
}

// UpsertDocument writes a conversation document keyed by its conversation
// id, replacing any previous version in full.
func (c *Client) UpsertDocument(ctx context.Context, doc models.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := opensearchapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("upserting document %s returned status %d", doc.ID, res.StatusCode)
	}
	return nil
}

// DeleteDocument removes a conversation document by id. A 404 from the index
// means the document is already gone and counts as success.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := opensearchapi.DeleteRequest{
		Index:      c.index,
		DocumentID: id,
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("deleting document %s returned status %d", id, res.StatusCode)
	}
	return nil
}

// Search executes a compiled request and returns the parsed hits.
func (c *Client) Search(ctx context.Context, req Request) (*models.SearchResponse, error) {
	body, err := json.Marshal(req.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("search execution failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned status %d", res.StatusCode)
	}

	var parsed models.SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if parsed.Hits.Hits == nil {
		parsed.Hits.Hits = []models.SearchHit{}
	}
	return &parsed, nil
}
