package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenContentPlainString(t *testing.T) {
	text, parts := FlattenContent(json.RawMessage(`"hello world"`))
	require.Equal(t, "hello world", text)
	require.Nil(t, parts)
}

func TestFlattenContentStructuredParts(t *testing.T) {
	raw := json.RawMessage(`[
		{"type":"text","text":"look at this"},
		{"type":"image","media_key":"uploads/a.png","mime_type":"image/png"},
		{"type":"text","text":"what is it?"}
	]`)

	text, parts := FlattenContent(raw)
	require.Equal(t, "look at this\nwhat is it?", text)
	require.Len(t, parts, 3)
	require.Equal(t, "uploads/a.png", parts[1].MediaKey)
}

func TestFlattenContentUnparseable(t *testing.T) {
	text, parts := FlattenContent(json.RawMessage(`{"not":"a message"}`))
	require.Empty(t, text)
	require.Nil(t, parts)

	text, parts = FlattenContent(nil)
	require.Empty(t, text)
	require.Nil(t, parts)
}

func TestActionForMapsEventTypes(t *testing.T) {
	ev := OutboxEvent{EventType: EventConversationUpserted}
	_, ok := ev.ActionFor().(UpsertConversation)
	require.True(t, ok)

	ev.EventType = EventConversationDeleted
	_, ok = ev.ActionFor().(DeleteConversation)
	require.True(t, ok)

	ev.EventType = "conversation.renamed"
	unknown, ok := ev.ActionFor().(UnknownEvent)
	require.True(t, ok)
	require.Equal(t, "conversation.renamed", unknown.Raw)
}
