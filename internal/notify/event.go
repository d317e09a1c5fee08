// Package notify delivers engine events to moderators and downstream systems.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an engine event.
type EventType string

const (
	EventWarningIssued    EventType = "warning_issued"
	EventItemRemoved      EventType = "item_removed"
	EventItemReinstated   EventType = "item_reinstated"
	EventFlaggedForReview EventType = "explanation_flagged_for_review"
	EventCoreError        EventType = "core_error"
)

// Event is a structured notification about one item.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	ItemID string    `json:"item_id"`
	Author string    `json:"author"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(t EventType, itemID, author, reason string, at time.Time) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		ItemID: itemID,
		Author: author,
		Reason: reason,
		At:     at.UTC(),
	}
}

// Summary is a one-line human readable rendering of the event.
func (e Event) Summary() string {
	author := e.Author
	if author == "" {
		author = "[deleted]"
	}
	s := string(e.Type) + ": item " + e.ItemID + " by " + author
	if e.Reason != "" {
		s += " (" + e.Reason + ")"
	}
	return s
}
