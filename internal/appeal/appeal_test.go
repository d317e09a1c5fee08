package appeal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/enforcement"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/explanation"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform/platformtest"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExtractItemID(t *testing.T) {
	hosts := []string{"redd.it"}

	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "full link", text: "Please check https://www.reddit.com/r/eu4/comments/1abcde/my_map/ thanks", want: "1abcde", ok: true},
		{name: "full link without slug", text: "reddit.com/comments/1AbCdE", want: "1abcde", ok: true},
		{name: "short link", text: "see https://redd.it/1abcde.", want: "1abcde", ok: true},
		{name: "short link without scheme", text: "redd.it/zz9yy8", want: "zz9yy8", ok: true},
		{name: "fullname", text: "post t3_abcdef", want: "abcdef", ok: true},
		{name: "bare id", text: "my post (1q2w3e) was removed", want: "1q2w3e", ok: true},
		{name: "first link wins", text: "https://reddit.com/comments/2bbbbb or https://redd.it/3ccccc", want: "2bbbbb", ok: true},
		{name: "link wins over earlier fullname", text: "t3_1aaaaa and https://reddit.com/comments/2bbbbb", want: "2bbbbb", ok: true},
		{name: "link wins over earlier word with digits", text: "hello2024 https://www.reddit.com/r/eu4/comments/zzzzz1/x/", want: "zzzzz1", ok: true},
		{name: "first bare id wins without links", text: "t3_1aaaaa or 2bbbbb", want: "1aaaaa", ok: true},
		{name: "link before bare id", text: "https://redd.it/3ccccc 1ddddd", want: "3ccccc", ok: true},
		{name: "plain words are not ids", text: "Hello there moderators, please reinstate", ok: false},
		{name: "numbers alone are not ids", text: "I waited 123456 seconds", ok: false},
		{name: "too short", text: "https://redd.it/ab1", ok: false},
		{name: "too long", text: "t3_abcdefghijk", ok: false},
		{name: "unknown short host", text: "https://example.com/1abcde", ok: false},
		{name: "empty", text: "   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractItemID(tt.text, hosts)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractItemID_LongInput(t *testing.T) {
	text := strings.Repeat("aaaaaaaaaaaaaaaaaaaaaaaa/comments/ ", 10000)
	_, ok := ExtractItemID(text, []string{"redd.it"})
	assert.False(t, ok)
}

type mockReinstater struct {
	mock.Mock
}

func (m *mockReinstater) Reinstate(ctx context.Context, item *models.ContentItem, cand explanation.Candidate) error {
	args := m.Called(ctx, item, cand)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

type fixture struct {
	handler    *Handler
	platform   *platformtest.Fake
	records    repository.RecordRepository
	reinstater *mockReinstater
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)
	fake := platformtest.New()
	records := repository.NewRecordRepository(store.NewMemoryStore(nil), repository.TTLs{
		Processed: time.Hour, Warned: time.Hour, Removed: time.Hour, Approved: time.Hour,
	}, logger)
	appeals := config.Default().Appeals
	appeals.ArchiveOnSuccess = true
	r := &mockReinstater{}

	return &fixture{
		handler:    NewHandler(fake, records, r, config.DefaultRules(), appeals, "ppbot", nil, logger),
		platform:   fake,
		records:    records,
		reinstater: r,
	}
}

func (f *fixture) removedItem(t *testing.T, byEngine bool) {
	f.platform.AddItem(models.ContentItem{
		ID:        "1abcde",
		Author:    strPtr("alice"),
		Type:      models.ItemTypeImage,
		Permalink: "/r/eu4/comments/1abcde/map/",
		Removed:   true,
	})
	if byEngine {
		require.NoError(t, f.records.SetRemoved(context.Background(), "1abcde", models.ActionRecord{At: time.Now()}))
	}
}

func (f *fixture) explain(length int) {
	f.platform.AddComment(models.Comment{ID: "c1", ItemID: "1abcde", Author: "alice", Body: strings.Repeat("y", length), TopLevel: true})
}

func appealFor(sender string) models.AppealMessage {
	return models.AppealMessage{
		ThreadID: "m1",
		Sender:   sender,
		Subject:  "Reinstatement request",
		Body:     "I have added an explanation to my post: https://www.reddit.com/r/eu4/comments/1abcde/map/",
	}
}

func TestHandle_Outcomes(t *testing.T) {
	t.Run("no reference", func(t *testing.T) {
		f := newFixture(t)
		out := f.handler.Handle(context.Background(), models.AppealMessage{ThreadID: "m1", Sender: "alice", Body: "please help"})
		assert.Equal(t, OutcomeInvalidReference, out)
		require.Len(t, f.platform.Replies, 1)
		assert.Contains(t, f.platform.Replies[0].Body, "couldn't find a link")
	})

	t.Run("deleted item", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, OutcomeNotFound, f.handler.Handle(context.Background(), appealFor("alice")))
		require.Len(t, f.platform.Replies, 1)
	})

	t.Run("visible item", func(t *testing.T) {
		f := newFixture(t)
		f.platform.AddItem(models.ContentItem{ID: "1abcde", Author: strPtr("alice"), Permalink: "/r/eu4/comments/1abcde/map/"})
		assert.Equal(t, OutcomeAlreadyApproved, f.handler.Handle(context.Background(), appealFor("alice")))
		assert.Contains(t, f.platform.Replies[0].Body, "https://www.reddit.com/r/eu4/comments/1abcde/map/")
	})

	t.Run("removed by a moderator", func(t *testing.T) {
		f := newFixture(t)
		f.removedItem(t, false)
		f.explain(200)

		assert.Equal(t, OutcomeNotRemovedByBot, f.handler.Handle(context.Background(), appealFor("alice")))
		f.reinstater.AssertNotCalled(t, "Reinstate", mock.Anything, mock.Anything, mock.Anything)
		assert.Contains(t, f.platform.Replies[0].Body, "not removed by this bot")
	})

	t.Run("sender is not the author", func(t *testing.T) {
		f := newFixture(t)
		f.removedItem(t, true)
		f.explain(200)

		assert.Equal(t, OutcomeNotAuthor, f.handler.Handle(context.Background(), appealFor("mallory")))
		f.reinstater.AssertNotCalled(t, "Reinstate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("explanation too short", func(t *testing.T) {
		f := newFixture(t)
		f.removedItem(t, true)
		f.explain(10)

		assert.Equal(t, OutcomeInvalidExplanation, f.handler.Handle(context.Background(), appealFor("ALICE")))
		assert.Contains(t, f.platform.Replies[0].Body, "too short")
	})

	t.Run("reinstated", func(t *testing.T) {
		f := newFixture(t)
		f.removedItem(t, true)
		f.explain(80)
		f.reinstater.On("Reinstate", mock.Anything, mock.MatchedBy(func(it *models.ContentItem) bool { return it.ID == "1abcde" }), mock.Anything).Return(nil).Once()

		assert.Equal(t, OutcomeReinstated, f.handler.Handle(context.Background(), appealFor("alice")))
		f.reinstater.AssertExpectations(t)
		assert.Equal(t, []string{"m1"}, f.platform.Archived)
		assert.Contains(t, f.platform.Replies[0].Body, "has been reinstated")
	})

	t.Run("reinstatement fails", func(t *testing.T) {
		f := newFixture(t)
		f.removedItem(t, true)
		f.explain(80)
		f.reinstater.On("Reinstate", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("platform down")).Once()

		assert.Equal(t, OutcomeError, f.handler.Handle(context.Background(), appealFor("alice")))
		assert.Empty(t, f.platform.Archived)
		assert.Contains(t, f.platform.Replies[0].Body, "Something went wrong")
	})

	t.Run("platform failure", func(t *testing.T) {
		f := newFixture(t)
		f.platform.Errors["get_item"] = errors.New("timeout")
		assert.Equal(t, OutcomeError, f.handler.Handle(context.Background(), appealFor("alice")))
		require.Len(t, f.platform.Replies, 1)
	})
}

type nopScheduler struct{}

func (nopScheduler) Schedule(context.Context, scheduler.Job, time.Time) error { return nil }

// End to end with the real engine: removal by the engine is reversed, removal by a human is not.
func TestHandle_WithEngine(t *testing.T) {
	setup := func(t *testing.T) (*Handler, *platformtest.Fake, repository.RecordRepository, *enforcement.Engine) {
		logger := zaptest.NewLogger(t)
		fake := platformtest.New()
		records := repository.NewRecordRepository(store.NewMemoryStore(nil), repository.TTLs{
			Processed: time.Hour, Warned: time.Hour, Removed: time.Hour, Approved: time.Hour,
		}, logger)
		rules := config.DefaultRules()
		appeals := config.Default().Appeals
		engine := enforcement.NewEngine(records, fake, nil, nopScheduler{}, enforcement.Options{Rules: rules, Appeals: appeals, BotUsername: "ppbot"}, logger)
		fake.AddItem(models.ContentItem{ID: "1abcde", Author: strPtr("alice"), Type: models.ItemTypeImage, Permalink: "/r/eu4/comments/1abcde/map/"})
		return NewHandler(fake, records, engine, rules, appeals, "ppbot", nil, logger), fake, records, engine
	}

	t.Run("removed by the engine", func(t *testing.T) {
		h, fake, records, engine := setup(t)
		ctx := context.Background()
		item, _ := fake.Item("1abcde")
		require.NoError(t, engine.Warn(ctx, &item, "missing"))
		require.NoError(t, engine.Remove(ctx, &item, "missing"))
		fake.AddComment(models.Comment{ID: "c1", ItemID: "1abcde", Author: "alice", Body: strings.Repeat("z", 80), TopLevel: true})

		assert.Equal(t, OutcomeReinstated, h.Handle(ctx, appealFor("alice")))

		item, _ = fake.Item("1abcde")
		assert.False(t, item.Removed)
		for _, c := range fake.LiveComments("1abcde") {
			assert.NotEqual(t, "ppbot", c.Author, "bot comments deleted")
		}
		snap, err := records.Snapshot(ctx, "1abcde")
		require.NoError(t, err)
		assert.False(t, snap.Touched())
		assert.NotNil(t, snap.ApprovedAt)
	})

	t.Run("removed by a human", func(t *testing.T) {
		h, fake, _, _ := setup(t)
		ctx := context.Background()
		fake.SetRemoved("1abcde", true)
		fake.AddComment(models.Comment{ID: "c1", ItemID: "1abcde", Author: "alice", Body: strings.Repeat("z", 80), TopLevel: true})

		assert.Equal(t, OutcomeNotRemovedByBot, h.Handle(ctx, appealFor("alice")))
		item, _ := fake.Item("1abcde")
		assert.True(t, item.Removed)
		assert.Empty(t, fake.Approved)
	})
}
