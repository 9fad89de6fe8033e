package models

import "time"

// Event types
const (
	EventTypeDocumentCreated  = "DOCUMENT_CREATED"
	EventTypeDocumentUpdated  = "DOCUMENT_UPDATED"
	EventTypeDocumentDeleted  = "DOCUMENT_DELETED"
	EventTypeCollectionSynced = "COLLECTION_SYNCED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeEvent is published after every write to a collection
type ChangeEvent struct {
	BaseEvent
	Collection string `json:"collection"`
	DocumentID string `json:"document_id,omitempty"`
	// Origin identifies the process that made the change.
	Origin string `json:"origin"`
}
