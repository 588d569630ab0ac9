package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAbsoluteURL(t *testing.T) {
	_, err := New("notes.local/api")
	assert.Error(t, err)

	c, err := New("http://notes.local/api/")
	require.NoError(t, err)
	assert.Equal(t, "/api", c.base.Path)
}

func TestListNotes_QueryParameters(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		got = append(got, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"notes":      []map[string]any{{"id": "1", "title": "t", "tag": "Work"}},
			"totalPages": 4,
		})
	})

	page, err := c.ListNotes(context.Background(), models.ListQuery{Search: "milk", Page: 2, Tag: models.WithTag("Work")})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalPages)
	require.Len(t, page.Notes, 1)
	assert.Equal(t, "Work", page.Notes[0].Tag)

	_, err = c.ListNotes(context.Background(), models.ListQuery{})
	require.NoError(t, err)
	_, err = c.ListNotes(context.Background(), models.ListQuery{Page: 1, Tag: models.WithTag("")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"page=2&perPage=12&search=milk&tag=Work",
		"page=1&perPage=12&search=",
		"page=1&perPage=12&search=",
	}, got)
}

func TestListNotes_NilNotesBecomeEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notes":null,"totalPages":0}`))
	})
	page, err := c.ListNotes(context.Background(), models.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.NotNil(t, page.Notes)
	assert.Empty(t, page.Notes)
}

func TestAuthorizationHeader(t *testing.T) {
	var auth atomic.Value
	h := func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"notes":[],"totalPages":0}`))
	}

	c := newTestClient(t, h, WithToken("s3cret"))
	_, err := c.ListNotes(context.Background(), models.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", auth.Load())

	c = newTestClient(t, h)
	_, err = c.ListNotes(context.Background(), models.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())
}

func TestServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	})
	_, err := c.ListNotes(context.Background(), models.ListQuery{Page: 1})

	var se *apperr.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, `{"error":"boom"}`, se.Body)
	assert.Equal(t, apperr.KindService, apperr.KindOf(err))
}

func TestUndecodableBodyIsServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.ListNotes(context.Background(), models.ListQuery{Page: 1})
	assert.Equal(t, apperr.KindService, apperr.KindOf(err))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.ListNotes(context.Background(), models.ListQuery{Page: 1})

	var te *apperr.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "GET /notes", te.Op)
}

func TestCreateNote_InvalidDraftSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.CreateNote(context.Background(), models.NoteDraft{Title: "ab", Tag: "Holiday"})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "tag")
	assert.Zero(t, calls.Load())
}

func TestCreateNote_PostsDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var d models.NoteDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Note{ID: "n1", Title: d.Title, Content: d.Content, Tag: d.Tag})
	})

	n, err := c.CreateNote(context.Background(), models.NoteDraft{Title: "Standup", Content: "9:30", Tag: models.TagMeeting})
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, models.TagMeeting, n.Tag)
}

func TestCreateNote_ServiceRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"validation failed","fields":{"title":"taken"}}`))
	})

	_, err := c.CreateNote(context.Background(), models.NoteDraft{Title: "Standup", Tag: models.TagMeeting})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, map[string]string{"title": "taken"}, ve.Fields)
}

func TestDeleteNote_TwiceIsNotFound(t *testing.T) {
	var deleted atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notes/n1", r.URL.Path)
		if !deleted.CompareAndSwap(false, true) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(models.Note{ID: "n1"})
	})

	n, err := c.DeleteNote(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)

	_, err = c.DeleteNote(context.Background(), "n1")
	var se *apperr.ServiceError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.NotFound())
}
