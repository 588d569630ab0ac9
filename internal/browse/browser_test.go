package browse

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/notesync"
	"github.com/starford/notehub/internal/querycache"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type memGateway struct {
	mu      sync.Mutex
	notes   []models.Note
	lists   []models.ListQuery
	creates int
}

func (g *memGateway) ListNotes(_ context.Context, q models.ListQuery) (*models.NotesPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lists = append(g.lists, q)
	out := []models.Note{}
	for _, n := range g.notes {
		if q.Search != "" && !strings.Contains(n.Title, q.Search) {
			continue
		}
		if tag, ok := q.Tag.Name(); ok && tag != "" && n.Tag != tag {
			continue
		}
		out = append(out, n)
	}
	total := 0
	if len(out) > 0 {
		total = 1
	}
	return &models.NotesPage{Notes: out, TotalPages: total}, nil
}

func (g *memGateway) CreateNote(_ context.Context, d models.NoteDraft) (*models.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	n := models.Note{ID: "n" + string(rune('0'+len(g.notes))), Title: d.Title, Content: d.Content, Tag: d.Tag}
	g.notes = append(g.notes, n)
	return &n, nil
}

func (g *memGateway) GetNote(_ context.Context, id string) (*models.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.notes {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, &apperr.ServiceError{Status: 404, Body: "not found"}
}

func (g *memGateway) DeleteNote(_ context.Context, id string) (*models.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, n := range g.notes {
		if n.ID == id {
			g.notes = append(g.notes[:i], g.notes[i+1:]...)
			return &n, nil
		}
	}
	return nil, &apperr.ServiceError{Status: 404, Body: "not found"}
}

func (g *memGateway) listCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lists)
}

func mountedBrowser(t *testing.T, gw *memGateway) (*Browser, *syncBuffer) {
	t.Helper()
	cache := querycache.New()
	t.Cleanup(cache.Close)
	out := &syncBuffer{}
	b := New(cache, gw, models.AnyTag(), out,
		WithControllerOptions(notesync.WithDebounceWindow(20*time.Millisecond)))
	b.Controller().Mount()
	t.Cleanup(b.Controller().Unmount)
	return b, out
}

func eventuallyContains(t *testing.T, out *syncBuffer, s string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), s) },
		time.Second, 5*time.Millisecond, "output never contained %q:\n%s", s, out.String())
}

func TestBrowser_DrawsListing(t *testing.T) {
	gw := &memGateway{notes: []models.Note{{ID: "n0", Title: "Standup", Tag: "Meeting"}}}
	_, out := mountedBrowser(t, gw)

	eventuallyContains(t, out, "Standup")
	eventuallyContains(t, out, "page 1 of 1")
}

func TestBrowser_EmptyListingNotifiesAndHidesPagination(t *testing.T) {
	gw := &memGateway{}
	_, out := mountedBrowser(t, gw)

	eventuallyContains(t, out, "! "+notesync.EmptyResultMessage)
	assert.NotContains(t, out.String(), "page 1 of")
}

func TestBrowser_TypedSearch(t *testing.T) {
	gw := &memGateway{notes: []models.Note{
		{ID: "n0", Title: "Groceries", Tag: "Shopping"},
		{ID: "n1", Title: "Roadmap", Tag: "Work"},
	}}
	b, out := mountedBrowser(t, gw)
	eventuallyContains(t, out, "Roadmap")

	b.Exec(context.Background(), "Gro")
	eventuallyContains(t, out, "search: Gro")
	assert.Equal(t, "Gro", b.Controller().State().Search)
}

func TestBrowser_CreateValidatesLocally(t *testing.T) {
	gw := &memGateway{}
	b, out := mountedBrowser(t, gw)

	b.Exec(context.Background(), ":new ab | body | Holiday")
	assert.Contains(t, out.String(), "title: Title must be between 3 and 50 characters")
	assert.Contains(t, out.String(), "tag: Tag is not supported")
	assert.Zero(t, gw.creates)
	assert.False(t, b.Controller().State().CreateOpen)
}

func TestBrowser_CreateRefreshesListing(t *testing.T) {
	gw := &memGateway{}
	b, out := mountedBrowser(t, gw)
	eventuallyContains(t, out, notesync.EmptyResultMessage)
	before := gw.listCount()

	b.Exec(context.Background(), ":new Weekly review | notes | Work")
	eventuallyContains(t, out, `created n0 "Weekly review"`)
	eventuallyContains(t, out, "Weekly review")
	assert.Greater(t, gw.listCount(), before)

	st := b.Controller().State()
	assert.False(t, st.CreateOpen)
	assert.Equal(t, models.DefaultDraft(), st.Draft)
}

func TestBrowser_ShowAndRemove(t *testing.T) {
	gw := &memGateway{notes: []models.Note{{ID: "n0", Title: "Plan", Content: "ship it", Tag: "Work"}}}
	b, out := mountedBrowser(t, gw)
	eventuallyContains(t, out, "Plan")

	b.Exec(context.Background(), ":show n0")
	assert.Contains(t, out.String(), "ship it")

	b.Exec(context.Background(), ":rm n0")
	assert.Contains(t, out.String(), `deleted n0 "Plan"`)
	eventuallyContains(t, out, "! "+notesync.EmptyResultMessage)

	b.Exec(context.Background(), ":rm n0")
	assert.Contains(t, out.String(), "could not delete note n0: not found")
}

func TestBrowser_Commands(t *testing.T) {
	gw := &memGateway{}
	b, out := mountedBrowser(t, gw)

	assert.False(t, b.Exec(context.Background(), ":page x"))
	assert.Contains(t, out.String(), "page must be a positive number")

	b.Exec(context.Background(), ":tag Work")
	name, ok := b.Controller().State().Tag.Name()
	assert.True(t, ok)
	assert.Equal(t, "Work", name)

	b.Exec(context.Background(), ":tag all")
	assert.False(t, b.Controller().State().Tag.IsSet())

	b.Exec(context.Background(), ":bogus")
	assert.Contains(t, out.String(), `unknown command "bogus"`)

	assert.True(t, b.Exec(context.Background(), ":quit"))
}

func TestBrowser_RunStopsAtEndOfInput(t *testing.T) {
	gw := &memGateway{}
	cache := querycache.New()
	defer cache.Close()
	out := &syncBuffer{}
	b := New(cache, gw, models.WithTag("Todo"), out)

	err := b.Run(context.Background(), strings.NewReader(":tag Work\n:quit\n:never\n"))
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "never")
}

func TestBrowser_RunReleasesInputReaderOnQuit(t *testing.T) {
	gw := &memGateway{}
	cache := querycache.New()
	defer cache.Close()
	b := New(cache, gw, models.AnyTag(), &syncBuffer{})

	before := runtime.NumGoroutine()
	// Lines after :quit are scanned but nobody receives them any more.
	err := b.Run(context.Background(), strings.NewReader(":quit\nleft over\nand more\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond, "input goroutine still running")
}

func TestParseDraft(t *testing.T) {
	d := parseDraft("Title only")
	assert.Equal(t, models.NoteDraft{Title: "Title only", Tag: models.TagTodo}, d)

	d = parseDraft(" A | B | Work ")
	assert.Equal(t, models.NoteDraft{Title: "A", Content: "B", Tag: "Work"}, d)
}
