// Package platformtest provides an in-memory platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform"
)

// Reply is an appeal reply sent through the fake.
type Reply struct {
	ThreadID string
	Body     string
}

// Fake is an in-memory platform.Client. Errors can be injected per operation name.
type Fake struct {
	mu       sync.Mutex
	items    map[string]*models.ContentItem
	comments map[string][]models.Comment
	nextID   int

	Errors map[string]error

	Posted   []models.Comment
	Deleted  []string
	Removed  []string
	Approved []string
	Reports  []string
	Replies  []Reply
	Archived []string
	Calls    []string
}

var _ platform.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		items:    make(map[string]*models.ContentItem),
		comments: make(map[string][]models.Comment),
		Errors:   make(map[string]error),
	}
}

// AddItem stores a copy of item.
func (f *Fake) AddItem(item models.ContentItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = &item
}

// DeleteItem makes the item disappear.
func (f *Fake) DeleteItem(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
}

// Item returns a copy of the stored item.
func (f *Fake) Item(id string) (models.ContentItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return models.ContentItem{}, false
	}
	return *it, true
}

// SetRemoved changes the item's visibility as a human moderator would.
func (f *Fake) SetRemoved(id string, removed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[id]; ok {
		it.Removed = removed
	}
}

// AddComment attaches a comment written by someone other than the bot.
func (f *Fake) AddComment(c models.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[c.ItemID] = append(f.comments[c.ItemID], c)
}

// LiveComments returns the comments that were not deleted.
func (f *Fake) LiveComments(itemID string) []models.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Comment(nil), f.comments[itemID]...)
}

func (f *Fake) call(op string) error {
	f.Calls = append(f.Calls, op)
	return f.Errors[op]
}

func (f *Fake) GetItem(_ context.Context, itemID string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("get_item"); err != nil {
		return nil, err
	}
	it, ok := f.items[itemID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *Fake) ListComments(_ context.Context, itemID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("list_comments"); err != nil {
		return nil, err
	}
	return append([]models.Comment(nil), f.comments[itemID]...), nil
}

func (f *Fake) PostComment(_ context.Context, itemID, body string, opts platform.CommentOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("post_comment"); err != nil {
		return "", err
	}
	if _, ok := f.items[itemID]; !ok {
		return "", platform.ErrNotFound
	}
	f.nextID++
	c := models.Comment{
		ID:          fmt.Sprintf("bot%d", f.nextID),
		ItemID:      itemID,
		Author:      "ppbot",
		Body:        body,
		CreatedAt:   time.Now(),
		TopLevel:    true,
		IsModerator: opts.Distinguish,
	}
	f.comments[itemID] = append(f.comments[itemID], c)
	f.Posted = append(f.Posted, c)
	return c.ID, nil
}

func (f *Fake) DeleteComment(_ context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("delete_comment"); err != nil {
		return err
	}
	for itemID, cs := range f.comments {
		for i, c := range cs {
			if c.ID == commentID {
				f.comments[itemID] = append(cs[:i:i], cs[i+1:]...)
				f.Deleted = append(f.Deleted, commentID)
				return nil
			}
		}
	}
	return platform.ErrNotFound
}

func (f *Fake) Remove(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("remove"); err != nil {
		return err
	}
	it, ok := f.items[itemID]
	if !ok {
		return platform.ErrNotFound
	}
	it.Removed = true
	f.Removed = append(f.Removed, itemID)
	return nil
}

func (f *Fake) Approve(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("approve"); err != nil {
		return err
	}
	it, ok := f.items[itemID]
	if !ok {
		return platform.ErrNotFound
	}
	it.Removed = false
	f.Approved = append(f.Approved, itemID)
	return nil
}

func (f *Fake) Report(_ context.Context, itemID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("report"); err != nil {
		return err
	}
	f.Reports = append(f.Reports, itemID+": "+reason)
	return nil
}

func (f *Fake) ReplyToAppeal(_ context.Context, threadID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("reply"); err != nil {
		return err
	}
	f.Replies = append(f.Replies, Reply{ThreadID: threadID, Body: body})
	return nil
}

func (f *Fake) ArchiveAppeal(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("archive"); err != nil {
		return err
	}
	f.Archived = append(f.Archived, threadID)
	return nil
}
