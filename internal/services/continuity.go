package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"chatvault-backend/internal/models"
)

// ConversationHash computes the continuity fingerprint for an exchange from
// its opening messages. Exchanges that share a fingerprint are treated as
// turns of the same logical conversation.
//
// Seed selection: the first system message plus the first user message when
// both exist; just the first user message when there is no system message;
// the very first message when neither role is present. Returns "" for an
// empty exchange.
func ConversationHash(messages []models.IngestMessage) string {
	seeds := seedMessages(messages)
	if len(seeds) == 0 {
		return ""
	}

	parts := make([]string, 0, len(seeds))
	for _, m := range seeds {
		parts = append(parts, m.Role+":"+normalizeContent(m))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func seedMessages(messages []models.IngestMessage) []models.IngestMessage {
	var firstSystem, firstUser *models.IngestMessage
	for i := range messages {
		switch messages[i].Role {
		case models.RoleSystem:
			if firstSystem == nil {
				firstSystem = &messages[i]
			}
		case models.RoleUser:
			if firstUser == nil {
				firstUser = &messages[i]
			}
		}
	}

	switch {
	case firstSystem != nil && firstUser != nil:
		return []models.IngestMessage{*firstSystem, *firstUser}
	case firstUser != nil:
		return []models.IngestMessage{*firstUser}
	case len(messages) > 0:
		return []models.IngestMessage{messages[0]}
	default:
		return nil
	}
}

// normalizeContent flattens a seed message's content to comparable text:
// structured content contributes only its text parts, then the result is
// trimmed and lowercased so whitespace and casing differences do not split
// conversations.
func normalizeContent(m models.IngestMessage) string {
	text, _ := models.FlattenContent(m.Content)
	return strings.ToLower(strings.TrimSpace(text))
}
