// Package querycache is an in-memory cache of notes listings keyed by query.
//
// Entries have no TTL. A Success entry is stale unless it was seeded and not yet
// read, so reading it serves the cached data and refreshes it in the background.
// Concurrent reads of a key share one in-flight fetch. Every fetch carries a
// per-key sequence number and completions older than the last applied one are
// dropped, so a slow superseded response never overwrites newer data.
//
// All mutation goes through GetOrFetch, Fetch, Invalidate and Seed.
package querycache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/notehub/internal/models"
)

// Status is the lifecycle state of an entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is a point-in-time copy of a cached listing.
//
// InflightID is set while a fetch is outstanding and implies StatusLoading.
// Data is kept across background refetches and failed fetches.
type Entry struct {
	Key        Key
	Status     Status
	Data       *models.NotesPage
	Err        error
	UpdatedAt  time.Time
	InflightID string
}

// IsFetching reports whether a fetch is outstanding.
func (e Entry) IsFetching() bool { return e.InflightID != "" }

// Fetcher loads the listing of one key.
type Fetcher func(ctx context.Context) (*models.NotesPage, error)

type entry struct {
	state   Entry
	issued  uint64
	applied uint64
	fresh   bool
	fetch   Fetcher
	// invalid marks an entry invalidated while no fetcher was known; the next
	// GetOrFetch refetches it whatever the options.
	invalid bool
}

// Cache owns the entry map. Create it with New and release it with Close.
type Cache struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string]map[uint64]func(Entry)
	nextSub uint64

	flights singleflight.Group

	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithMetrics enables cache counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		subs:    make(map[string]map[uint64]func(Entry)),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels the context passed to outstanding fetches.
func (c *Cache) Close() {
	c.cancel()
}

type fetchOptions struct {
	force     bool
	skipStale bool
}

// FetchOption adjusts a single GetOrFetch call.
type FetchOption func(*fetchOptions)

// Force starts a new fetch even if one is already in flight.
func Force() FetchOption {
	return func(o *fetchOptions) { o.force = true }
}

// SkipStaleRefetch serves existing Success data without a background refetch.
func SkipStaleRefetch() FetchOption {
	return func(o *fetchOptions) { o.skipStale = true }
}

// GetOrFetch returns the current entry for key and makes sure it gets loaded:
//   - no entry: a Loading entry is created and fetched;
//   - fetch in flight: the caller joins it, no new request is made;
//   - Success: returned as is and refreshed in the background unless fresh;
//   - Error or Idle: fetched again.
//
// Results are delivered to subscribers of key.
func (c *Cache) GetOrFetch(key Key, fetch Fetcher, opts ...FetchOption) Entry {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := key.String()
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{state: Entry{Key: key}}
		c.entries[id] = e
	}
	e.fetch = fetch

	switch {
	case !ok:
		c.metrics.miss()
		c.startLocked(id, e)
	case o.force:
		c.startLocked(id, e)
	case e.state.IsFetching():
		c.metrics.dedup()
	case e.invalid:
		c.startLocked(id, e)
	case e.state.Status == StatusSuccess && e.fresh:
		c.metrics.hit()
		e.fresh = false
	case e.state.Status == StatusSuccess && o.skipStale:
		c.metrics.hit()
	case e.state.Status == StatusSuccess:
		c.metrics.hit()
		c.startLocked(id, e)
	default:
		c.startLocked(id, e)
	}

	snap := e.state
	subs := c.subscribersLocked(id)
	c.mu.Unlock()

	deliver(subs, snap)
	return snap
}

// Fetch returns the listing of key, joining the in-flight fetch when there is one
// and starting a new one otherwise. It blocks until the fetch completes or ctx is done.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher) (*models.NotesPage, error) {
	id := key.String()
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{state: Entry{Key: key}}
		c.entries[id] = e
		c.metrics.miss()
	}
	e.fetch = fetch

	var ch <-chan singleflight.Result
	if e.state.IsFetching() {
		c.metrics.dedup()
		// The flight cannot finish while c.mu is held, so DoChan joins it.
		ch = c.flights.DoChan(id, func() (any, error) { return nil, context.Canceled })
	} else {
		ch = c.startLocked(id, e)
	}
	subs := c.subscribersLocked(id)
	snap := e.state
	c.mu.Unlock()

	deliver(subs, snap)

	select {
	case res := <-ch:
		page, _ := res.Val.(*models.NotesPage)
		return page, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers fn for every change of key's entry. Subscriptions outlive
// entry eviction. The returned func removes the subscription.
func (c *Cache) Subscribe(key Key, fn func(Entry)) (unsubscribe func()) {
	id := key.String()
	c.mu.Lock()
	c.nextSub++
	n := c.nextSub
	if c.subs[id] == nil {
		c.subs[id] = make(map[uint64]func(Entry))
	}
	c.subs[id][n] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs[id], n)
			if len(c.subs[id]) == 0 {
				delete(c.subs, id)
			}
		})
	}
}

// Invalidate marks every entry whose key matches pred as stale. Entries with
// subscribers are refetched in place and keep their data; the rest are dropped.
// A subscribed entry that was never read through GetOrFetch or Fetch has no
// fetcher: it keeps its data and is refetched on its next GetOrFetch.
func (c *Cache) Invalidate(pred func(Key) bool) {
	type delivery struct {
		subs []func(Entry)
		snap Entry
	}
	var out []delivery

	c.mu.Lock()
	for id, e := range c.entries {
		if !pred(e.state.Key) {
			continue
		}
		c.metrics.invalidate()
		subs := c.subscribersLocked(id)
		if len(subs) > 0 && e.fetch != nil {
			e.fresh = false
			c.startLocked(id, e)
			out = append(out, delivery{subs: subs, snap: e.state})
			continue
		}
		if len(subs) > 0 {
			// Nothing to refetch with yet: keep the data for the subscribers.
			e.fresh = false
			e.invalid = true
			continue
		}
		delete(c.entries, id)
	}
	c.mu.Unlock()

	for _, d := range out {
		deliver(d.subs, d.snap)
	}
}

// Seed stores data for key as a Success entry without a fetch. The entry is
// fresh until its first read. Fetches in flight for key are superseded.
func (c *Cache) Seed(key Key, data *models.NotesPage) {
	c.SeedAt(key, data, time.Time{})
}

// SeedAt is Seed with the time the data was fetched. A zero updatedAt means now.
func (c *Cache) SeedAt(key Key, data *models.NotesPage, updatedAt time.Time) {
	id := key.String()
	c.mu.Lock()
	if updatedAt.IsZero() {
		updatedAt = c.now()
	}
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	e.issued++
	e.applied = e.issued
	e.fresh = true
	e.invalid = false
	e.state = Entry{
		Key:       key,
		Status:    StatusSuccess,
		Data:      data,
		UpdatedAt: updatedAt,
	}
	subs := c.subscribersLocked(id)
	snap := e.state
	c.mu.Unlock()

	deliver(subs, snap)
}

// Peek returns the entry for key without triggering a fetch.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	return e.state, true
}

// SnapshotEntry is the transferable part of a Success entry.
type SnapshotEntry struct {
	Key       Key               `json:"key"`
	Data      *models.NotesPage `json:"data"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Snapshot returns every Success entry, ordered by key.
func (c *Cache) Snapshot() []SnapshotEntry {
	c.mu.Lock()
	ids := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.state.Status == StatusSuccess && e.state.Data != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]SnapshotEntry, len(ids))
	for i, id := range ids {
		e := c.entries[id]
		out[i] = SnapshotEntry{Key: e.state.Key, Data: e.state.Data, UpdatedAt: e.state.UpdatedAt}
	}
	c.mu.Unlock()
	return out
}

// startLocked issues a new fetch for e. c.mu must be held.
func (c *Cache) startLocked(id string, e *entry) <-chan singleflight.Result {
	e.issued++
	seq := e.issued
	e.invalid = false
	e.state.Status = StatusLoading
	e.state.InflightID = uuid.NewString()
	fetch := e.fetch

	// A forgotten flight still delivers to its own waiters; new joiners get the new one.
	c.flights.Forget(id)
	return c.flights.DoChan(id, func() (any, error) {
		data, err := fetch(c.ctx)
		c.complete(id, e, seq, data, err)
		return data, err
	})
}

// complete applies a fetch result to e unless e was evicted or a newer result won.
func (c *Cache) complete(id string, e *entry, seq uint64, data *models.NotesPage, err error) {
	c.mu.Lock()
	if c.entries[id] != e || seq <= e.applied || (err != nil && seq < e.issued) {
		c.mu.Unlock()
		c.metrics.discard()
		c.logger.Debug("querycache: stale completion dropped",
			slog.String("key", id),
			slog.Uint64("seq", seq))
		return
	}

	e.applied = seq
	latest := seq == e.issued
	if latest {
		e.state.InflightID = ""
	}
	if err != nil {
		e.state.Status = StatusError
		e.state.Err = err
	} else {
		e.state.Data = data
		e.state.Err = nil
		if latest {
			e.state.Status = StatusSuccess
		}
	}
	e.state.UpdatedAt = c.now()
	e.fresh = false

	subs := c.subscribersLocked(id)
	snap := e.state
	c.mu.Unlock()

	deliver(subs, snap)
}

func (c *Cache) subscribersLocked(id string) []func(Entry) {
	m := c.subs[id]
	if len(m) == 0 {
		return nil
	}
	out := make([]func(Entry), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func deliver(subs []func(Entry), e Entry) {
	for _, fn := range subs {
		fn(e)
	}
}
