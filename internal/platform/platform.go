// Package platform is the boundary to the host platform: content retrieval and moderation actions.
package platform

import (
	"context"
	"errors"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
)

var (
	// ErrNotFound means the item, comment or thread no longer exists.
	ErrNotFound = errors.New("platform: not found")
	// ErrPermissionDenied means the bot account lost the rights needed for the operation.
	ErrPermissionDenied = errors.New("platform: permission denied")
)

// CommentOptions control how a bot comment is presented.
type CommentOptions struct {
	Distinguish bool `json:"distinguish"`
	Sticky      bool `json:"sticky"`
}

// Client is what the engine needs from the host platform. Every call is a single attempt.
type Client interface {
	GetItem(ctx context.Context, itemID string) (*models.ContentItem, error)
	ListComments(ctx context.Context, itemID string) ([]models.Comment, error)
	PostComment(ctx context.Context, itemID, body string, opts CommentOptions) (string, error)
	DeleteComment(ctx context.Context, commentID string) error
	Remove(ctx context.Context, itemID string) error
	Approve(ctx context.Context, itemID string) error
	Report(ctx context.Context, itemID, reason string) error
	ReplyToAppeal(ctx context.Context, threadID, body string) error
	ArchiveAppeal(ctx context.Context, threadID string) error
}
