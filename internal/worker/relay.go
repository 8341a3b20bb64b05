// Package worker contains the outbox relay: a sequential poll-process loop
// that drains pending outbox events and projects relational state into the
// search index. Multiple relay processes run as uncoordinated shards; the
// only coordination point is the store's atomic claim.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/search"
	"chatvault-backend/internal/store"

	"github.com/google/uuid"
)

// OutboxStore is the slice of the source store the relay needs.
type OutboxStore interface {
	FetchPendingOutboxEvents(ctx context.Context, lockTTL time.Duration, limit int) ([]models.OutboxEvent, error)
	ClaimOutboxEvent(ctx context.Context, id uuid.UUID, lockID string, lockTTL time.Duration) (bool, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID, lockID string) error
	ReleaseOutboxLock(ctx context.Context, id uuid.UUID, lockID string) error
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

// Indexer is the slice of the search index the relay writes to.
type Indexer interface {
	UpsertDocument(ctx context.Context, doc models.SearchDocument) error
	DeleteDocument(ctx context.Context, id string) error
}

// Config holds the relay's tunables.
type Config struct {
	ShardIndex  int           // This worker's shard in 0..ShardTotal-1
	ShardTotal  int           // Number of cooperating workers
	BatchSize   int           // Max events processed per poll
	LockTTL     time.Duration // Claim expiry; a crashed worker's claim is reclaimed after this
	StepTimeout time.Duration // Per-event store/index call budget
}

// Relay drains pending outbox events for its shard and applies projections
// to the search index with at-least-once delivery.
type Relay struct {
	store  OutboxStore
	index  Indexer
	cfg    Config
	lockID string
	health *Health
}

// NewRelay creates a relay worker. Each worker gets a fresh lock id so
// claims can be traced to the process that took them.
func NewRelay(s OutboxStore, idx Indexer, cfg Config, health *Health) (*Relay, error) {
	if s == nil {
		return nil, errors.New("worker: outbox store must not be nil")
	}
	if idx == nil {
		return nil, errors.New("worker: indexer must not be nil")
	}
	if cfg.ShardTotal <= 0 {
		cfg.ShardTotal = 1
	}
	if cfg.ShardIndex < 0 || cfg.ShardIndex >= cfg.ShardTotal {
		return nil, fmt.Errorf("worker: shard index %d out of range for %d shards", cfg.ShardIndex, cfg.ShardTotal)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}

	return &Relay{
		store:  s,
		index:  idx,
		cfg:    cfg,
		lockID: uuid.New().String(),
		health: health,
	}, nil
}

// Run executes the poll loop until ctx is cancelled. A single poll's failure
// is logged and looping continues; only cancellation stops the relay.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	log.Printf("[Relay] Starting: shard %d/%d, batch %d, lock TTL %s, lock id %s",
		r.cfg.ShardIndex, r.cfg.ShardTotal, r.cfg.BatchSize, r.cfg.LockTTL, r.lockID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		processed, err := r.PollOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ERROR [Relay] Poll failed: %v", err)
		}
		if processed > 0 {
			log.Printf("[Relay] Processed %d event(s)", processed)
		}
		if r.health != nil {
			r.health.RecordPoll()
		}

		select {
		case <-ctx.Done():
			log.Println("[Relay] Shutdown signal received, stopping poll loop.")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches candidate events, keeps the ones belonging to this shard,
// claims and processes up to the batch limit. It returns how many events
// were fully processed.
func (r *Relay) PollOnce(ctx context.Context) (int, error) {
	// Over-fetch so shard filtering still leaves a full batch in the worst
	// case of every other shard's events sorting first.
	fetchLimit := r.cfg.BatchSize * r.cfg.ShardTotal

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	events, err := r.store.FetchPendingOutboxEvents(fetchCtx, r.cfg.LockTTL, fetchLimit)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	processed := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if processed >= r.cfg.BatchSize {
			break
		}
		if ShardFor(ev.AggregateID, r.cfg.ShardTotal) != r.cfg.ShardIndex {
			continue
		}

		claimCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
		claimed, err := r.store.ClaimOutboxEvent(claimCtx, ev.ID, r.lockID, r.cfg.LockTTL)
		cancel()
		if err != nil {
			log.Printf("ERROR [Relay] Failed to claim event %s: %v", ev.ID, err)
			continue
		}
		if !claimed {
			// Another worker won the race; nothing to do.
			continue
		}

		if err := r.handleClaimed(ctx, ev); err != nil {
			log.Printf("ERROR [Relay] Event %s (%s) failed, releasing lock for retry: %v", ev.ID, ev.EventType, err)
			r.release(ctx, ev.ID)
			continue
		}
		processed++
	}

	return processed, nil
}

// handleClaimed processes one claimed event and marks it processed. Any
// error leaves the event unprocessed so the caller can release the lock.
func (r *Relay) handleClaimed(ctx context.Context, ev models.OutboxEvent) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	switch action := ev.ActionFor().(type) {
	case models.UpsertConversation:
		if err := r.projectUpsert(stepCtx, action.AggregateID); err != nil {
			return err
		}
	case models.DeleteConversation:
		if err := r.index.DeleteDocument(stepCtx, action.AggregateID.String()); err != nil {
			return err
		}
	case models.UnknownEvent:
		// Never block the queue on an unrecognized kind.
		log.Printf("WARN [Relay] Unknown event type %q on event %s, marking processed", action.Raw, ev.ID)
	}

	if err := r.store.MarkOutboxProcessed(stepCtx, ev.ID, r.lockID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// projectUpsert rebuilds the conversation's document from relational state
// and upserts it. The rebuild is total, never incremental, so duplicate
// delivery converges on the same document.
func (r *Relay) projectUpsert(ctx context.Context, conversationID uuid.UUID) error {
	conv, err := r.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The conversation was deleted before we got here; the deletion
			// event will clean up the index.
			log.Printf("[Relay] Conversation %s gone before projection, skipping upsert", conversationID)
			return nil
		}
		return fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	msgs, err := r.store.ListMessagesByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages for %s: %w", conversationID, err)
	}

	doc := search.ProjectConversation(conv, msgs)
	if err := r.index.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// release frees the claim after a failure. It uses a fresh timeout so a
// timed-out processing step does not also doom the release.
func (r *Relay) release(ctx context.Context, id uuid.UUID) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StepTimeout)
	defer cancel()
	if err := r.store.ReleaseOutboxLock(releaseCtx, id, r.lockID); err != nil {
		// The lock will expire on its own after the TTL.
		log.Printf("ERROR [Relay] Failed to release lock on event %s: %v", id, err)
	}
}

// ShardFor deterministically routes an aggregate id to a shard, so a
// conversation's events are always handled by the same worker.
func ShardFor(aggregateID uuid.UUID, shardTotal int) int {
	if shardTotal <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(aggregateID.String()))
	return int(h.Sum32() % uint32(shardTotal))
}
