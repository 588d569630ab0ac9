// Package gateway is the HTTP client for the remote notes service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
)

// PerPage is the fixed page size requested from the service.
const PerPage = 12

const maxErrorBody = 64 << 10

// Client performs list, get, create and delete calls. It never retries.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every call. An empty token sends no header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: base url must be absolute: %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListNotes fetches one page of notes. An absent or empty tag sends no tag parameter.
func (c *Client) ListNotes(ctx context.Context, q models.ListQuery) (*models.NotesPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("perPage", strconv.Itoa(PerPage))
	params.Set("search", q.Search)
	if tag, ok := q.Tag.Name(); ok && tag != "" {
		params.Set("tag", tag)
	}

	var out models.NotesPage
	if err := c.do(ctx, http.MethodGet, "/notes", params, nil, &out); err != nil {
		return nil, err
	}
	if out.Notes == nil {
		out.Notes = []models.Note{}
	}
	return &out, nil
}

// GetNote fetches a single note.
func (c *Client) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var out models.Note
	if err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNote validates the draft and creates the note. Invalid drafts are rejected
// with a ValidationError before any request is sent; a 400 or 422 from the service
// is reported the same way.
func (c *Client) CreateNote(ctx context.Context, d models.NoteDraft) (*models.Note, error) {
	if err := d.Validate(); err != nil {
		return nil, apperr.NewValidation(err)
	}
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode draft: %w", err)
	}
	var out models.Note
	if err := c.do(ctx, http.MethodPost, "/notes", nil, body, &out); err != nil {
		var se *apperr.ServiceError
		if errors.As(err, &se) && (se.Status == http.StatusBadRequest || se.Status == http.StatusUnprocessableEntity) {
			return nil, rejected(se)
		}
		return nil, err
	}
	return &out, nil
}

// DeleteNote deletes a note and returns it. Deleting twice yields a ServiceError with status 404.
func (c *Client) DeleteNote(ctx context.Context, id string) (*models.Note, error) {
	var out models.Note
	if err := c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	op := method + " " + path
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("gateway: request failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return &apperr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway: request done",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperr.ServiceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.ServiceError{Status: resp.StatusCode, Body: "invalid response body: " + err.Error()}
	}
	return nil
}

// rejected turns a 400/422 body into field messages. Bodies shaped like
// {"error": "...", "fields": {"title": "..."}} keep their fields.
func rejected(se *apperr.ServiceError) *apperr.ValidationError {
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	ve := &apperr.ValidationError{Fields: map[string]string{}}
	if err := json.Unmarshal([]byte(se.Body), &body); err == nil && len(body.Fields) > 0 {
		ve.Fields = body.Fields
		return ve
	}
	msg := body.Error
	if msg == "" {
		msg = se.Body
	}
	ve.Fields[""] = msg
	return ve
}
