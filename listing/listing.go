// Package listing filters list views by free-text search and exact-match
// dropdown filters.
package listing

import (
	"net/url"
	"strings"
)

// All is the dropdown value that disables a filter.
const All = "all"

type Query struct {
	Search  string
	Filters map[string]string
}

// ParseQuery reads the search term from "q" and the named filters. Empty
// and "all" values are dropped.
func ParseQuery(v url.Values, filters ...string) Query {
	q := Query{Search: strings.TrimSpace(v.Get("q")), Filters: map[string]string{}}
	for _, name := range filters {
		val := strings.TrimSpace(v.Get(name))
		if val == "" || strings.EqualFold(val, All) {
			continue
		}
		q.Filters[name] = val
	}
	return q
}

// Fields exposes an item to the filter: Text is searched, Exact is compared
// against the named filters.
type Fields struct {
	Text  []string
	Exact map[string]string
}

func (q Query) Match(f Fields) bool {
	for name, want := range q.Filters {
		if !strings.EqualFold(f.Exact[name], want) {
			return false
		}
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	for _, t := range f.Text {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Filter keeps the items matching q in their original order.
func Filter[T any](items []T, q Query, fields func(T) Fields) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q.Match(fields(it)) {
			out = append(out, it)
		}
	}
	return out
}

// Page is the JSON body of every list view. Error is set when the backing
// fetch failed, in which case Items is empty.
type Page[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}

func NewPage[T any](items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: len(items)}
}

func Failed[T any](msg string) Page[T] {
	return Page[T]{Items: []T{}, Error: msg}
}
