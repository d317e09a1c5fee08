package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{
		BaseURL:     srv.URL + "/",
		Token:       "tok",
		Timeout:     time.Second,
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}, zaptest.NewLogger(t))
}

func TestHTTPClient_GetItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/abc", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"abc","author":"alice","type":"image","removed":true}`))
	})

	item, err := client.GetItem(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", item.ID)
	assert.Equal(t, "alice", item.AuthorName())
	assert.True(t, item.Removed)
}

func TestHTTPClient_DeletedAuthor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"abc","author":null}`))
	})

	item, err := client.GetItem(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, item.Author)
}

func TestHTTPClient_PostComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/items/abc/comments", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["body"])
		assert.Equal(t, true, body["distinguish"])
		assert.Equal(t, true, body["sticky"])

		w.Write([]byte(`{"id":"c1"}`))
	})

	id, err := client.PostComment(context.Background(), "abc", "hello", CommentOptions{Distinguish: true, Sticky: true})
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusNotFound, want: ErrNotFound},
		{status: http.StatusForbidden, want: ErrPermissionDenied},
		{status: http.StatusUnauthorized, want: ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			err := client.Remove(context.Background(), "abc")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPClient_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	assert.Error(t, client.Approve(ctx, "abc"))
	assert.Error(t, client.Approve(ctx, "abc"))
	err := client.Approve(ctx, "abc")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestHTTPClient_NotFoundDoesNotTrip(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, client.DeleteComment(ctx, "c1"), ErrNotFound)
	}
	assert.Equal(t, 4, calls)
}

func TestHTTPClient_ListComments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/abc/comments", r.URL.Path)
		w.Write([]byte(`{"comments":[{"id":"c1","author":"alice","top_level":true},{"id":"c2","is_moderator":true}]}`))
	})

	comments, err := client.ListComments(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.True(t, comments[0].TopLevel)
	assert.True(t, comments[1].IsModerator)
}

func TestHTTPClient_AppealCalls(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	})
	ctx := context.Background()

	require.NoError(t, client.ReplyToAppeal(ctx, "m1", "thanks"))
	require.NoError(t, client.ArchiveAppeal(ctx, "m1"))
	require.NoError(t, client.Report(ctx, "abc", "no explanation"))
	assert.Equal(t, []string{"/appeals/m1/reply", "/appeals/m1/archive", "/items/abc/report"}, paths)
}
