// Package notesync keeps one notes view in sync with the query cache.
//
// A Controller owns the view inputs (search, page, tag), derives the query key
// from them, reads the key through the cache and publishes a State to its
// renderer on every change. Search and tag changes reset the page to 1 before the
// key is derived. Once unmounted, nothing it receives changes its state.
package notesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/debounce"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/querycache"
)

// EmptyResultMessage is sent to the Notifier when a listing comes back empty.
const EmptyResultMessage = "No notes found for your request."

// DefaultDebounceWindow is the quiet time before typed search text is applied.
const DefaultDebounceWindow = 500 * time.Millisecond

// Gateway is the part of the notes service the controller calls.
type Gateway interface {
	ListNotes(ctx context.Context, q models.ListQuery) (*models.NotesPage, error)
	CreateNote(ctx context.Context, d models.NoteDraft) (*models.Note, error)
}

// Notifier shows transient user-visible messages.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify calls f(msg).
func (f NotifierFunc) Notify(msg string) { f(msg) }

// Controller synchronizes one mounted notes view.
type Controller struct {
	cache          *querycache.Cache
	gw             Gateway
	logger         *slog.Logger
	notifier       Notifier
	render         func(State)
	window         time.Duration
	refetchOnMount bool

	// keyMu serializes key changes; emitMu keeps renders in state order.
	keyMu  sync.Mutex
	emitMu sync.Mutex

	mu        sync.Mutex
	state     State
	prev      *models.NotesPage
	notified  *models.NotesPage
	unsub     func()
	mounted   bool
	done      bool
	debouncer *debounce.Debouncer[string]
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounceWindow sets the search debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(c *Controller) {
		c.window = d
	}
}

// WithRefetchOnMount makes Mount refresh cached data for the initial key.
// It is off by default so hydrated data is not fetched twice.
func WithRefetchOnMount(on bool) Option {
	return func(c *Controller) {
		c.refetchOnMount = on
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithRenderer sets the function receiving every published State.
// It must not call Controller mutators synchronously.
func WithRenderer(fn func(State)) Option {
	return func(c *Controller) {
		c.render = fn
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a Controller for the view filtered by tag. Call Mount to start it.
func New(cache *querycache.Cache, gw Gateway, tag models.TagFilter, opts ...Option) *Controller {
	c := &Controller{
		cache:    cache,
		gw:       gw,
		logger:   slog.Default(),
		notifier: NotifierFunc(func(string) {}),
		render:   func(State) {},
		window:   DefaultDebounceWindow,
		state: State{
			Page:  1,
			Tag:   tag,
			Draft: models.DefaultDraft(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount subscribes to the initial key and loads it. Cached data for that key is
// served without a refetch unless WithRefetchOnMount(true) was given.
func (c *Controller) Mount() {
	c.mu.Lock()
	if c.mounted || c.done {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.debouncer = debounce.New(c.window, c.SetSearch)
	c.mu.Unlock()

	var opts []querycache.FetchOption
	if !c.refetchOnMount {
		opts = append(opts, querycache.SkipStaleRefetch())
	}
	c.load(true, opts...)
}

// Unmount tears the view down. Pending debounced input is dropped and later
// fetch completions are ignored. In-flight requests are not aborted.
func (c *Controller) Unmount() {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	c.mu.Lock()
	c.mounted = false
	c.done = true
	unsub, d := c.unsub, c.debouncer
	c.unsub = nil
	c.mu.Unlock()

	if d != nil {
		d.Cancel()
	}
	if unsub != nil {
		unsub()
	}
}

// State returns the current view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TypeSearch feeds raw search-box text; it is applied after the debounce window.
func (c *Controller) TypeSearch(raw string) {
	c.mu.Lock()
	d := c.debouncer
	c.mu.Unlock()
	if d != nil {
		d.Push(raw)
	}
}

// SetSearch applies search text immediately and resets the page to 1 when it changed.
func (c *Controller) SetSearch(search string) {
	if !c.change(func(s *State) bool {
		if s.Search == search {
			return false
		}
		s.Search = search
		s.Page = 1
		return true
	}) {
		return
	}
	c.load(false)
}

// SetTag changes the tag filter and resets the page to 1 when it changed.
func (c *Controller) SetTag(tag models.TagFilter) {
	if !c.change(func(s *State) bool {
		if s.Tag == tag {
			return false
		}
		s.Tag = tag
		s.Page = 1
		return true
	}) {
		return
	}
	c.load(false)
}

// SetPage moves to page; values below 1 become 1.
func (c *Controller) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	if !c.change(func(s *State) bool {
		if s.Page == page {
			return false
		}
		s.Page = page
		return true
	}) {
		return
	}
	c.load(false)
}

// NextPage advances one page when there is one.
func (c *Controller) NextPage() {
	st := c.State()
	if st.Page < st.TotalPages {
		c.SetPage(st.Page + 1)
	}
}

// PrevPage goes back one page when possible.
func (c *Controller) PrevPage() {
	st := c.State()
	if st.Page > 1 {
		c.SetPage(st.Page - 1)
	}
}

// Refetch reloads the current key even if a fetch is in flight. Failed listings
// are only retried through Refetch or an input change.
func (c *Controller) Refetch() {
	c.load(true, querycache.Force())
}

// OpenCreate shows the creation surface.
func (c *Controller) OpenCreate() {
	c.update(func(s *State) {
		s.CreateOpen = true
		s.CreateFailed = false
	})
}

// CloseCreate hides the creation surface and discards the draft.
func (c *Controller) CloseCreate() {
	c.update(func(s *State) {
		s.CreateOpen = false
		s.CreatePending = false
		s.CreateFailed = false
		s.Draft = models.DefaultDraft()
	})
}

// SubmitCreate creates a note from d. On success the creation surface closes, the
// draft resets and every notes listing is invalidated. A ValidationError is
// returned as is for field-level display; any other failure keeps the surface
// open with CreateFailed set. Nothing is inserted locally.
func (c *Controller) SubmitCreate(ctx context.Context, d models.NoteDraft) (*models.Note, error) {
	c.update(func(s *State) {
		s.Draft = d
		s.CreatePending = true
		s.CreateFailed = false
	})

	note, err := c.gw.CreateNote(ctx, d)
	if err != nil {
		failed := apperr.KindOf(err) != apperr.KindValidation
		if failed {
			c.logger.Warn("notesync: create note failed", slog.String("error", err.Error()))
		}
		c.update(func(s *State) {
			s.CreatePending = false
			s.CreateFailed = failed
		})
		return nil, err
	}

	c.cache.Invalidate(querycache.InNamespace(querycache.Namespace))
	c.update(func(s *State) {
		s.CreateOpen = false
		s.CreatePending = false
		s.CreateFailed = false
		s.Draft = models.DefaultDraft()
	})
	return note, nil
}

// change applies fn to the state of a mounted controller and reports whether
// fn changed anything. Nothing is published; the following load does that.
func (c *Controller) change(fn func(*State) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return false
	}
	return fn(&c.state)
}

// load derives the key from the inputs and reads it through the cache.
// Unless force is set, nothing happens when the key did not change.
func (c *Controller) load(force bool, opts ...querycache.FetchOption) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	key := querycache.NotesKey(models.ListQuery{
		Search: c.state.Search,
		Page:   c.state.Page,
		Tag:    c.state.Tag,
	})
	changed := key != c.state.Key || c.unsub == nil
	if !changed && !force {
		c.mu.Unlock()
		return
	}
	c.state.Key = key
	old := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	if changed {
		if old != nil {
			old()
		}
		old = c.cache.Subscribe(key, c.onEntry)
	}
	c.mu.Lock()
	c.unsub = old
	c.mu.Unlock()

	c.logger.Debug("notesync: load", slog.String("key", key.String()), slog.Bool("force", force))
	entry := c.cache.GetOrFetch(key, c.fetcher(key), opts...)
	c.onEntry(entry)
}

func (c *Controller) fetcher(key querycache.Key) querycache.Fetcher {
	q := key.Query()
	return func(ctx context.Context) (*models.NotesPage, error) {
		return c.gw.ListNotes(ctx, q)
	}
}

// onEntry folds a cache entry into the state. Entries for other keys and
// deliveries after Unmount are ignored.
func (c *Controller) onEntry(e querycache.Entry) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	// Deliveries can arrive out of order; the cache holds the latest entry.
	if cur, ok := c.cache.Peek(e.Key); ok {
		e = cur
	}

	c.mu.Lock()
	if !c.mounted || e.Key != c.state.Key {
		c.mu.Unlock()
		return
	}
	c.applyLocked(e)
	empty := c.emptyResultLocked()
	st := c.state
	c.mu.Unlock()

	if empty {
		c.notifier.Notify(EmptyResultMessage)
	}
	c.render(st)
}

func (c *Controller) applyLocked(e querycache.Entry) {
	s := &c.state
	s.Err = nil
	s.Placeholder = false
	s.Fetching = e.IsFetching()

	switch {
	case e.Data != nil:
		s.Data = e.Data
		c.prev = e.Data
		if e.Status == querycache.StatusError {
			s.Phase = PhaseError
			s.Err = e.Err
		} else {
			s.Phase = PhaseSuccess
		}
	case e.Status == querycache.StatusError:
		s.Data = nil
		s.Phase = PhaseError
		s.Err = e.Err
	case c.prev != nil:
		s.Data = c.prev
		s.Placeholder = true
		s.Phase = PhaseSuccess
		s.Fetching = true
	case e.Status == querycache.StatusLoading:
		s.Data = nil
		s.Phase = PhaseLoading
	default:
		s.Data = nil
		s.Phase = PhaseIdle
	}

	s.TotalPages = 0
	if s.Data != nil {
		s.TotalPages = s.Data.TotalPages
	}
}

// emptyResultLocked reports whether the shown data is a new empty response.
func (c *Controller) emptyResultLocked() bool {
	s := c.state
	if s.Phase != PhaseSuccess || s.Placeholder || s.Data == nil || len(s.Data.Notes) != 0 {
		return false
	}
	if s.Data == c.notified {
		return false
	}
	c.notified = s.Data
	return true
}

// update applies fn to a mounted controller and publishes the result.
func (c *Controller) update(fn func(*State)) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	st := c.state
	c.mu.Unlock()

	c.render(st)
}
