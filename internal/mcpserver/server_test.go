package mcpserver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/querycache"
)

type memNotes struct {
	mu    sync.Mutex
	notes []models.Note
	lists []models.ListQuery
}

func (m *memNotes) ListNotes(_ context.Context, q models.ListQuery) (*models.NotesPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, q)
	out := []models.Note{}
	for _, n := range m.notes {
		if tag, ok := q.Tag.Name(); ok && n.Tag != tag {
			continue
		}
		if q.Search != "" && !strings.Contains(n.Title, q.Search) {
			continue
		}
		out = append(out, n)
	}
	pages := 0
	if len(out) > 0 {
		pages = 1
	}
	return &models.NotesPage{Notes: out, TotalPages: pages}, nil
}

func (m *memNotes) GetNote(_ context.Context, id string) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, &apperr.ServiceError{Status: 404}
}

func (m *memNotes) CreateNote(_ context.Context, d models.NoteDraft) (*models.Note, error) {
	if err := d.Validate(); err != nil {
		return nil, apperr.NewValidation(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := models.Note{ID: "id-" + d.Title, Title: d.Title, Content: d.Content, Tag: d.Tag}
	m.notes = append(m.notes, n)
	return &n, nil
}

func (m *memNotes) DeleteNote(_ context.Context, id string) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return &n, nil
		}
	}
	return nil, &apperr.ServiceError{Status: 404}
}

func testServer(t *testing.T) (*Server, *memNotes, *querycache.Cache) {
	t.Helper()
	notes := &memNotes{notes: []models.Note{
		{ID: "a", Title: "Standup", Tag: models.TagMeeting},
		{ID: "b", Title: "Groceries", Tag: models.TagShopping},
	}}
	cache := querycache.New()
	t.Cleanup(cache.Close)
	return New(notes, cache, nil), notes, cache
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchNotes(t *testing.T) {
	srv, notes, cache := testServer(t)

	r := callTool(t, srv, "search_notes", map[string]interface{}{"tag": "Meeting"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, "Standup") || strings.Contains(text, "Groceries") {
		t.Errorf("search result = %q", text)
	}
	if len(notes.lists) != 1 || notes.lists[0].Page != 1 {
		t.Errorf("list calls = %+v", notes.lists)
	}
	key := querycache.NotesKey(models.ListQuery{Page: 1, Tag: models.WithTag("Meeting")})
	if e, ok := cache.Peek(key); !ok || e.Status != querycache.StatusSuccess {
		t.Errorf("listing not cached under %s", key)
	}
}

func TestSearchNotes_AllAndEmpty(t *testing.T) {
	srv, notes, _ := testServer(t)

	r := callTool(t, srv, "search_notes", map[string]interface{}{"tag": "all", "page": float64(1)})
	if !strings.Contains(resultText(r), "Groceries") {
		t.Errorf("all = %q", resultText(r))
	}
	if notes.lists[0].Tag.IsSet() {
		t.Error("tag 'all' should not filter")
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"search": "zzz"})
	if resultText(r) != "No notes found for your request." {
		t.Errorf("empty = %q", resultText(r))
	}
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Book flights",
		"content": "Lisbon in May",
		"tag":     "Personal",
	})
	if text := resultText(r); text != "created: id-Book flights" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": "id-Book flights"})
	if !strings.Contains(resultText(r), "Lisbon in May") {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestCreateNote_InvalidatesListings(t *testing.T) {
	srv, _, cache := testServer(t)
	_ = callTool(t, srv, "search_notes", map[string]interface{}{})
	key := querycache.NotesKey(models.ListQuery{Page: 1})
	if _, ok := cache.Peek(key); !ok {
		t.Fatal("listing not cached")
	}

	_ = callTool(t, srv, "create_note", map[string]interface{}{"title": "New one", "tag": "Todo"})
	if _, ok := cache.Peek(key); ok {
		t.Error("listing still cached after create")
	}
}

func TestCreateNote_Invalid(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "create_note", map[string]interface{}{"title": "ab", "tag": "work"})
	if !r.IsError {
		t.Fatal("expected error for invalid note")
	}
	text := resultText(r)
	if !strings.Contains(text, "- title:") || !strings.Contains(text, "- tag:") {
		t.Errorf("error = %q", text)
	}
}

func TestDeleteNote(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "delete_note", map[string]interface{}{"id": "a"})
	if text := resultText(r); text != "deleted: a (Standup)" {
		t.Errorf("delete = %q", text)
	}
	r = callTool(t, srv, "delete_note", map[string]interface{}{"id": "a"})
	if !r.IsError || resultText(r) != "not found: a" {
		t.Errorf("second delete = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "read_note", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestNoteContract(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_note_contract", nil)
	if !strings.Contains(resultText(r), "Work, Personal, Meeting, Shopping, Todo") {
		t.Error("contract does not list the tags")
	}

	res, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != noteFormatURI {
		t.Errorf("resource = %+v", res[0])
	}
}
