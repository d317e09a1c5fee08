package models

import (
	"strings"
	"time"
)

// ItemType is the platform's content discriminator.
type ItemType string

const (
	ItemTypeImage     ItemType = "image"
	ItemTypeGallery   ItemType = "gallery"
	ItemTypeVideo     ItemType = "video"
	ItemTypeText      ItemType = "text"
	ItemTypeLink      ItemType = "link"
	ItemTypeTextMedia ItemType = "text-with-media"
)

// ContentItem is a submitted post as reported by the host platform. Read-only to the engine.
type ContentItem struct {
	ID        string    `json:"id"`
	Author    *string   `json:"author"` // nil when the account was deleted
	Title     string    `json:"title"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
	Type      ItemType  `json:"type"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	Score     int       `json:"score"`
	Approved  bool      `json:"approved"`
	Removed   bool      `json:"removed"`
	Flair     string    `json:"flair"`
}

// AuthorName returns the author's username, or "" for deleted accounts.
func (i *ContentItem) AuthorName() string {
	if i == nil || i.Author == nil {
		return ""
	}
	return *i.Author
}

// IsAuthor reports whether name is the item's author. Usernames compare case-insensitively.
func (i *ContentItem) IsAuthor(name string) bool {
	author := i.AuthorName()
	return author != "" && strings.EqualFold(author, strings.TrimSpace(name))
}

// Comment is a comment-like annotation attached to a content item.
type Comment struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	TopLevel    bool      `json:"top_level"`
	Removed     bool      `json:"removed"`
	IsModerator bool      `json:"is_moderator"`
}
