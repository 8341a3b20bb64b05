package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type mockOutboxStore struct {
	events    []models.OutboxEvent
	claimFail map[uuid.UUID]bool // Claim returns false for these ids
	processed []uuid.UUID
	released  []uuid.UUID
	convs     map[uuid.UUID]*models.Conversation
	msgs      map[uuid.UUID][]models.Message
	fetchErr  error
}

func (m *mockOutboxStore) FetchPendingOutboxEvents(_ context.Context, _ time.Duration, limit int) ([]models.OutboxEvent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockOutboxStore) ClaimOutboxEvent(_ context.Context, id uuid.UUID, _ string, _ time.Duration) (bool, error) {
	return !m.claimFail[id], nil
}

func (m *mockOutboxStore) MarkOutboxProcessed(_ context.Context, id uuid.UUID, _ string) error {
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockOutboxStore) ReleaseOutboxLock(_ context.Context, id uuid.UUID, _ string) error {
	m.released = append(m.released, id)
	return nil
}

func (m *mockOutboxStore) GetConversationByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, ok := m.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

func (m *mockOutboxStore) ListMessagesByConversation(_ context.Context, id uuid.UUID) ([]models.Message, error) {
	return m.msgs[id], nil
}

type mockIndexer struct {
	upserts   []models.SearchDocument
	deletes   []string
	upsertErr error
	deleteErr error
}

func (m *mockIndexer) UpsertDocument(_ context.Context, doc models.SearchDocument) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, doc)
	return nil
}

func (m *mockIndexer) DeleteDocument(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, id)
	return nil
}

func upsertEvent(aggregateID uuid.UUID) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     models.EventConversationUpserted,
		AggregateType: models.AggregateTypeConversation,
		AggregateID:   aggregateID,
	}
}

func newTestRelay(t *testing.T, ms *mockOutboxStore, idx *mockIndexer, cfg Config) *Relay {
	t.Helper()
	r, err := NewRelay(ms, idx, cfg, nil)
	require.NoError(t, err)
	return r
}

func TestPollOnceProjectsUpsert(t *testing.T) {
	convID := uuid.New()
	ev := upsertEvent(convID)
	ms := &mockOutboxStore{
		events: []models.OutboxEvent{ev},
		convs: map[uuid.UUID]*models.Conversation{
			convID: {ID: convID, Model: "gpt-4"},
		},
		msgs: map[uuid.UUID][]models.Message{
			convID: {{Role: models.RoleUser, MessageIndex: 0}},
		},
	}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{ev.ID}, ms.processed)
	require.Len(t, idx.upserts, 1)
	require.Equal(t, convID.String(), idx.upserts[0].ID)
	require.Len(t, idx.upserts[0].Messages, 1)
}

func TestPollOnceDeleteRemovesDocument(t *testing.T) {
	convID := uuid.New()
	ev := models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   models.EventConversationDeleted,
		AggregateID: convID,
	}
	ms := &mockOutboxStore{events: []models.OutboxEvent{ev}}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{convID.String()}, idx.deletes)
	require.Equal(t, []uuid.UUID{ev.ID}, ms.processed)
}

func TestPollOnceSkipsLostClaim(t *testing.T) {
	ev := upsertEvent(uuid.New())
	ms := &mockOutboxStore{
		events:    []models.OutboxEvent{ev},
		claimFail: map[uuid.UUID]bool{ev.ID: true},
	}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, ms.processed)
	require.Empty(t, idx.upserts)
	require.Empty(t, ms.released)
}

func TestPollOnceReleasesLockOnIndexError(t *testing.T) {
	convID := uuid.New()
	ev := upsertEvent(convID)
	ms := &mockOutboxStore{
		events: []models.OutboxEvent{ev},
		convs:  map[uuid.UUID]*models.Conversation{convID: {ID: convID}},
	}
	idx := &mockIndexer{upsertErr: errors.New("index unavailable")}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	// The event stays pending for a later retry.
	require.Empty(t, ms.processed)
	require.Equal(t, []uuid.UUID{ev.ID}, ms.released)
}

func TestPollOnceMarksUnknownEventProcessed(t *testing.T) {
	ev := models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   "conversation.renamed",
		AggregateID: uuid.New(),
	}
	ms := &mockOutboxStore{events: []models.OutboxEvent{ev}}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{ev.ID}, ms.processed)
	require.Empty(t, idx.upserts)
	require.Empty(t, idx.deletes)
}

func TestPollOnceSkipsVanishedConversation(t *testing.T) {
	// The row was deleted between enqueue and projection; the upsert is a
	// no-op and the event is still consumed.
	ev := upsertEvent(uuid.New())
	ms := &mockOutboxStore{events: []models.OutboxEvent{ev}}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uuid.UUID{ev.ID}, ms.processed)
	require.Empty(t, idx.upserts)
}

func TestPollOnceFiltersOtherShards(t *testing.T) {
	const shardTotal = 4

	var events []models.OutboxEvent
	var mine []uuid.UUID
	convs := map[uuid.UUID]*models.Conversation{}
	for i := 0; i < 40; i++ {
		convID := uuid.New()
		ev := upsertEvent(convID)
		events = append(events, ev)
		convs[convID] = &models.Conversation{ID: convID}
		if ShardFor(convID, shardTotal) == 0 {
			mine = append(mine, ev.ID)
		}
	}
	require.NotEmpty(t, mine, "expected at least one event on shard 0")

	ms := &mockOutboxStore{events: events, convs: convs}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{ShardIndex: 0, ShardTotal: shardTotal, BatchSize: len(events)})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(mine), n)
	require.ElementsMatch(t, mine, ms.processed)
}

func TestPollOnceHonorsBatchSize(t *testing.T) {
	convs := map[uuid.UUID]*models.Conversation{}
	var events []models.OutboxEvent
	for i := 0; i < 5; i++ {
		convID := uuid.New()
		events = append(events, upsertEvent(convID))
		convs[convID] = &models.Conversation{ID: convID}
	}
	ms := &mockOutboxStore{events: events, convs: convs}
	idx := &mockIndexer{}
	r := newTestRelay(t, ms, idx, Config{BatchSize: 2})

	n, err := r.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, ms.processed, 2)
}

func TestShardForIsStable(t *testing.T) {
	id := uuid.New()
	first := ShardFor(id, 4)
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, 4)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, ShardFor(id, 4))
	}
}

func TestShardForSingleShard(t *testing.T) {
	require.Zero(t, ShardFor(uuid.New(), 1))
	require.Zero(t, ShardFor(uuid.New(), 0))
}

func TestNewRelayValidatesShardIndex(t *testing.T) {
	_, err := NewRelay(&mockOutboxStore{}, &mockIndexer{}, Config{ShardIndex: 3, ShardTotal: 2}, nil)
	require.Error(t, err)
}

func TestNewRelayAppliesDefaults(t *testing.T) {
	r, err := NewRelay(&mockOutboxStore{}, &mockIndexer{}, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.cfg.ShardTotal)
	require.Equal(t, 25, r.cfg.BatchSize)
	require.Equal(t, 60*time.Second, r.cfg.LockTTL)
	require.NotEmpty(t, r.lockID)
}
