package search

import (
	"chatvault-backend/internal/models"
)

// ProjectConversation rebuilds the search document for a conversation from
// relational state. The projection is a pure function of its inputs, so
// delivering the same event twice converges to an identical document.
func ProjectConversation(conv *models.Conversation, msgs []models.Message) models.SearchDocument {
	docMessages := make([]models.DocumentMessage, 0, len(msgs))
	for _, m := range msgs {
		text, parts := models.FlattenContent(m.Content)
		docMessages = append(docMessages, models.DocumentMessage{
			Role:              m.Role,
			Content:           text,
			MultimodalContent: parts,
		})
	}

	hash := ""
	if conv.ConversationHash != nil {
		hash = *conv.ConversationHash
	}

	return models.SearchDocument{
		ID:        conv.ID.String(),
		Timestamp: conv.UpdatedAt,
		Model:     conv.Model,
		Messages:  docMessages,
		Usage: models.UsageInfo{
			PromptTokens:     conv.PromptTokens,
			CompletionTokens: conv.CompletionTokens,
			TotalTokens:      conv.TotalTokens,
		},
		Latency:          conv.LatencyMs,
		ConversationHash: hash,
		CreatedAt:        conv.CreatedAt,
		UpdatedAt:        conv.UpdatedAt,
	}
}
