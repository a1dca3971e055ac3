// Package events carries the fire-and-forget notifications emitted when a
// contact's tag or list memberships change. Downstream automation keys off
// the exact ids in the payload, so publishers must send only the ids that
// actually changed, never the full resulting set.
package events

import (
	"context"
	"time"
)

// Type identifies a contact classification event.
type Type string

const (
	ContactAddedToTags      Type = "contact.added_to_tags"
	ContactRemovedFromTags  Type = "contact.removed_from_tags"
	ContactAddedToLists     Type = "contact.added_to_lists"
	ContactRemovedFromLists Type = "contact.removed_from_lists"
)

// Event is one classification change for one contact. ObjectIDs holds only
// the newly attached or actually removed tag/list ids.
type Event struct {
	Type      Type      `json:"type"`
	ContactID string    `json:"contact_id"`
	Email     string    `json:"email"`
	ObjectIDs []string  `json:"object_ids"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to external subscribers. Implementations must not
// block business operations on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards all events. Useful for wiring without a broker.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
