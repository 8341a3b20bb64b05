package models

import "github.com/google/uuid"

// Outbox event types written by the ingestion path.
const (
	EventConversationUpserted = "conversation.upserted"
	EventConversationDeleted  = "conversation.deleted"

	AggregateTypeConversation = "conversation"
)

// EventAction is the closed set of actions an outbox event can ask the relay
// to perform. Dispatching on a type switch over this set means a new event
// kind cannot be silently ignored at a call site.
type EventAction interface {
	isEventAction()
}

// UpsertConversation asks the relay to rebuild and upsert the search document
// for the given conversation.
type UpsertConversation struct {
	AggregateID uuid.UUID
}

// DeleteConversation asks the relay to remove the conversation's document
// from the search index.
type DeleteConversation struct {
	AggregateID uuid.UUID
}

// UnknownEvent carries an unrecognized event type. The relay logs it and
// marks the event processed so it never blocks the queue.
type UnknownEvent struct {
	Raw string
}

func (UpsertConversation) isEventAction() {}
func (DeleteConversation) isEventAction() {}
func (UnknownEvent) isEventAction()       {}

// ActionFor maps a stored outbox event onto its typed action.
func (e OutboxEvent) ActionFor() EventAction {
	switch e.EventType {
	case EventConversationUpserted:
		return UpsertConversation{AggregateID: e.AggregateID}
	case EventConversationDeleted:
		return DeleteConversation{AggregateID: e.AggregateID}
	default:
		return UnknownEvent{Raw: e.EventType}
	}
}
