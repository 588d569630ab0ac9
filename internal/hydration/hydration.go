// Package hydration moves prefetched cache entries from the front server to a
// client cache.
//
// The server prefetches the default listing of a tag route into a request-scoped
// cache, dehydrates it into a Snapshot and ships it with the page. The client
// hydrates its own cache from the Snapshot before mounting a controller, so the
// first render needs no network call.
package hydration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/querycache"
)

// Version is the snapshot format version written by Encode.
const Version = 1

// AllSlug is the route slug meaning "no tag filter".
const AllSlug = "all"

// Lister fetches one page of notes.
type Lister interface {
	ListNotes(ctx context.Context, q models.ListQuery) (*models.NotesPage, error)
}

// Snapshot is the serialized state of a cache.
type Snapshot struct {
	Version int                        `json:"version"`
	Entries []querycache.SnapshotEntry `json:"entries"`
}

// TagFromSlug maps the first route segment to a tag filter. "all" and an empty
// slug mean no filter; any other segment is used verbatim.
func TagFromSlug(slug string) models.TagFilter {
	slug = strings.Trim(slug, "/")
	if i := strings.IndexByte(slug, '/'); i >= 0 {
		slug = slug[:i]
	}
	if slug == "" || slug == AllSlug {
		return models.AnyTag()
	}
	return models.WithTag(slug)
}

// DefaultKey is the key a freshly mounted view of tag reads first.
func DefaultKey(tag models.TagFilter) querycache.Key {
	return querycache.NotesKey(models.ListQuery{Page: 1, Tag: tag})
}

// Prefetch loads the default listing of tag into cache with one list call.
func Prefetch(ctx context.Context, cache *querycache.Cache, l Lister, tag models.TagFilter) error {
	key := DefaultKey(tag)
	q := key.Query()
	_, err := cache.Fetch(ctx, key, func(ctx context.Context) (*models.NotesPage, error) {
		return l.ListNotes(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("hydration: prefetch %s: %w", key, err)
	}
	return nil
}

// Dehydrate captures every successful entry of cache.
func Dehydrate(cache *querycache.Cache) Snapshot {
	entries := cache.Snapshot()
	if entries == nil {
		entries = []querycache.SnapshotEntry{}
	}
	return Snapshot{Version: Version, Entries: entries}
}

// Hydrate seeds cache with the entries of snap, keeping their fetch times.
func Hydrate(cache *querycache.Cache, snap Snapshot) {
	for _, e := range snap.Entries {
		if e.Data == nil {
			continue
		}
		if e.Data.Notes == nil {
			e.Data.Notes = []models.Note{}
		}
		cache.SeedAt(e.Key, e.Data, e.UpdatedAt)
	}
}

// Encode writes snap as JSON.
func Encode(w io.Writer, snap Snapshot) error {
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("hydration: encode: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("hydration: decode: %w", err)
	}
	if snap.Version != Version {
		return Snapshot{}, fmt.Errorf("hydration: unsupported snapshot version %d", snap.Version)
	}
	for _, e := range snap.Entries {
		if e.Key.Namespace != querycache.Namespace {
			return Snapshot{}, fmt.Errorf("hydration: unknown namespace %q", e.Key.Namespace)
		}
	}
	return snap, nil
}

// Load fetches the snapshot served at url. A nil client uses a 10s timeout.
func Load(ctx context.Context, url string, client *http.Client) (Snapshot, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("hydration: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("hydration: load %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("hydration: load %s: status %d", url, resp.StatusCode)
	}
	return Decode(resp.Body)
}
