package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/store"

	"github.com/google/uuid"
)

// continuityWindow bounds the hash lookup so an old conversation sharing an
// opening line is not resurrected, and keeps the lookup cheap.
const continuityWindow = 365 * 24 * time.Hour

// ConversationService is the ingestion boundary: it runs the continuity
// matcher over incoming exchanges and persists them (with their outbox
// events) through the store.
type ConversationService struct {
	store store.Store
}

// NewConversationService creates a new ConversationService.
func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s}
}

// IngestExchange logs a completed exchange. A multi-turn exchange whose
// fingerprint matches a recent conversation extends that conversation
// instead of creating a duplicate row; everything else creates a new one.
func (s *ConversationService) IngestExchange(ctx context.Context, req models.IngestExchangeRequest) (*models.IngestExchangeResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("exchange must contain at least one message")
	}
	for i, m := range req.Messages {
		if !models.IsValidRole(m.Role) {
			return nil, fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
	}

	usage := models.UsageInfo{}
	if req.Usage != nil {
		usage = *req.Usage
	}

	msgParams := make([]store.CreateMessageParams, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgParams = append(msgParams, store.CreateMessageParams{Role: m.Role, Content: m.Content})
	}

	hash := ConversationHash(req.Messages)

	// Only an exchange that already carries more than one turn can continue
	// an existing conversation.
	if len(req.Messages) > 1 && hash != "" {
		existing, err := s.store.FindConversationByHash(ctx, hash, time.Now().Add(-continuityWindow))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up conversation by hash: %w", err)
		}
		if existing != nil {
			conv, err := s.store.ResyncConversationWithOutbox(ctx, store.ResyncConversationParams{
				ConversationID:   existing.ID,
				Model:            req.Model,
				LatencyMs:        req.LatencyMs,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.TotalTokens,
				Messages:         msgParams,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to extend conversation %s: %w", existing.ID, err)
			}
			log.Printf("[ConversationService] IngestExchange: continued conversation %s (%d messages)", conv.ID, len(msgParams))
			return &models.IngestExchangeResponse{ConversationID: conv.ID, Continued: true}, nil
		}
	}

	var hashPtr *string
	if hash != "" {
		hashPtr = &hash
	}

	conv, err := s.store.CreateConversationWithOutbox(ctx, store.CreateConversationParams{
		ID:               uuid.New(),
		Model:            req.Model,
		ConversationHash: hashPtr,
		LatencyMs:        req.LatencyMs,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Messages:         msgParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	log.Printf("[ConversationService] IngestExchange: created conversation %s (%d messages)", conv.ID, len(msgParams))
	return &models.IngestExchangeResponse{ConversationID: conv.ID, Continued: false}, nil
}

// GetConversation returns a conversation with its ordered messages.
func (s *ConversationService) GetConversation(ctx context.Context, id uuid.UUID) (*models.ConversationResponse, error) {
	conv, err := s.store.GetConversationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err // Propagate not found error
		}
		return nil, fmt.Errorf("failed to get conversation from store: %w", err)
	}

	msgs, err := s.store.ListMessagesByConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	resp := &models.ConversationResponse{
		ID:               conv.ID,
		Model:            conv.Model,
		ConversationHash: conv.ConversationHash,
		LatencyMs:        conv.LatencyMs,
		Usage: models.UsageInfo{
			PromptTokens:     conv.PromptTokens,
			CompletionTokens: conv.CompletionTokens,
			TotalTokens:      conv.TotalTokens,
		},
		Messages:  make([]models.MessageResponse, 0, len(msgs)),
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, models.MessageResponse{
			Role:         m.Role,
			Content:      m.Content,
			MessageIndex: m.MessageIndex,
			CreatedAt:    m.CreatedAt,
		})
	}
	return resp, nil
}

// DeleteConversation removes a conversation and enqueues the index removal.
func (s *ConversationService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteConversationWithOutbox(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
