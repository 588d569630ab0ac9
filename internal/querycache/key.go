package querycache

import (
	"encoding/json"
	"strings"

	"github.com/starford/notehub/internal/models"
)

// Namespace is the key namespace of every notes listing.
const Namespace = "notes"

// Key identifies one cached listing. Two keys are equal iff all fields are equal;
// an absent tag and an empty-string tag are different keys.
type Key struct {
	Namespace string           `json:"namespace"`
	Search    string           `json:"search"`
	Page      int              `json:"page"`
	Tag       models.TagFilter `json:"tag"`
}

// NotesKey returns the key of a listing query.
func NotesKey(q models.ListQuery) Key {
	return Key{Namespace: Namespace, Search: q.Search, Page: q.Page, Tag: q.Tag}
}

// Query returns the listing query the key stands for.
func (k Key) Query() models.ListQuery {
	return models.ListQuery{Search: k.Search, Page: k.Page, Tag: k.Tag}
}

// String serializes the key deterministically, e.g. ["notes","",1,null].
func (k Key) String() string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode([]any{k.Namespace, k.Search, k.Page, k.Tag})
	return strings.TrimSuffix(b.String(), "\n")
}

// InNamespace matches every key of namespace ns.
func InNamespace(ns string) func(Key) bool {
	return func(k Key) bool { return k.Namespace == ns }
}

// Exact matches only k.
func Exact(k Key) func(Key) bool {
	return func(other Key) bool { return other == k }
}
