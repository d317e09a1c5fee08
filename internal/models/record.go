package models

import "time"

// ActionRecord is the payload of the warned and removed records.
type ActionRecord struct {
	At        time.Time `json:"at"`
	CommentID string    `json:"comment_id,omitempty"`
}

// RecordSnapshot is the engine's view of one item's enforcement record.
type RecordSnapshot struct {
	ItemID     string        `json:"item_id"`
	Warned     *ActionRecord `json:"warned,omitempty"`
	Removed    *ActionRecord `json:"removed,omitempty"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`
}

// Touched reports whether the engine has an outstanding action on the item.
func (s RecordSnapshot) Touched() bool {
	return s.Warned != nil || s.Removed != nil
}
