// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the notes service as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/querycache"
)

const noteFormatURI = "notehub://note-format"

// Notes is the notes service as used by the MCP tools.
type Notes interface {
	ListNotes(ctx context.Context, q models.ListQuery) (*models.NotesPage, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	CreateNote(ctx context.Context, d models.NoteDraft) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) (*models.Note, error)
}

// Server wraps the MCP server with the notes tools.
type Server struct {
	mcp    *server.MCPServer
	notes  Notes
	cache  *querycache.Cache
	logger *slog.Logger
}

// New creates a new MCP server with all notes tools registered. Listings are
// read through cache; writes invalidate it.
func New(notes Notes, cache *querycache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{notes: notes, cache: cache, logger: logger}

	s.mcp = server.NewMCPServer(
		"Notehub",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("List notes, 12 per page, newest first. Optionally filter by a "+
			"case-insensitive title/content substring and by tag."),
		mcp.WithString("search", mcp.Description("Substring to match in title or content (empty for all)")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithString("tag", mcp.Description("One of Work, Personal, Meeting, Shopping, Todo; empty or 'all' for every tag")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a single note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by search_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The note MUST follow the note format contract: "+
			"read it first via the get_note_contract tool or the "+noteFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title, 3 to 50 characters")),
		mcp.WithString("content", mcp.Description("Content, at most 500 characters")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("One of Work, Personal, Meeting, Shopping, Todo")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id and return it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by search_notes")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Fields and creation rules every note must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := req.GetInt("page", 1)
	if page < 1 {
		page = 1
	}
	tag := models.AnyTag()
	if t := strings.TrimSpace(req.GetString("tag", "")); t != "" && t != "all" {
		tag = models.WithTag(t)
	}
	key := querycache.NotesKey(models.ListQuery{
		Search: strings.TrimSpace(req.GetString("search", "")),
		Page:   page,
		Tag:    tag,
	})

	q := key.Query()
	result, err := s.cache.Fetch(ctx, key, func(ctx context.Context) (*models.NotesPage, error) {
		return s.notes.ListNotes(ctx, q)
	})
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	if len(result.Notes) == 0 {
		return mcp.NewToolResultText("No notes found for your request."), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"page":       page,
		"totalPages": result.TotalPages,
		"notes":      result.Notes,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", describe(err), id)), nil
	}
	out, _ := json.MarshalIndent(n, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := models.NoteDraft{Title: title, Content: req.GetString("content", ""), Tag: tag}

	n, err := s.notes.CreateNote(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	s.cache.Invalidate(querycache.InNamespace(querycache.Namespace))
	s.logger.Info("mcp: note created", slog.String("id", n.ID))
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.DeleteNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", describe(err), id)), nil
	}
	s.cache.Invalidate(querycache.InNamespace(querycache.Namespace))
	s.logger.Info("mcp: note deleted", slog.String("id", n.ID))
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s (%s)", n.ID, n.Title)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

// describe renders err for a tool result.
func describe(err error) string {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		names := make([]string, 0, len(ve.Fields))
		for name := range ve.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names)+1)
		lines = append(lines, "invalid note:")
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("- %s: %s", name, ve.Fields[name]))
		}
		return strings.Join(lines, "\n")
	}
	var se *apperr.ServiceError
	if errors.As(err, &se) && se.NotFound() {
		return "not found"
	}
	return err.Error()
}
