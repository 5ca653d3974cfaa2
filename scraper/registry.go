package scraper

import (
	"fmt"
	"strings"
)

// Registry is the ordered set of extractors a harvest cycle runs.
type Registry struct {
	order []Extractor
	keys  map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]struct{})}
}

// Register appends e. Two extractors may not share a key.
func (r *Registry) Register(e Extractor) error {
	k := e.Key().String()
	if _, dup := r.keys[k]; dup {
		return fmt.Errorf("scraper: duplicate extractor %q", k)
	}
	r.keys[k] = struct{}{}
	r.order = append(r.order, e)
	return nil
}

// Extractors returns the registered extractors in registration order.
func (r *Registry) Extractors() []Extractor {
	out := make([]Extractor, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many extractors are registered.
func (r *Registry) Len() int { return len(r.order) }

// Filter returns a registry holding only the extractors whose key starts with
// one of prefixes ("highland", "unionmain/elevon"). No prefixes keeps all.
func (r *Registry) Filter(prefixes []string) *Registry {
	if len(prefixes) == 0 {
		return r
	}
	out := NewRegistry()
	for _, e := range r.order {
		k := e.Key().String()
		for _, p := range prefixes {
			if strings.HasPrefix(k, strings.ToLower(strings.TrimSpace(p))) {
				_ = out.Register(e)
				break
			}
		}
	}
	return out
}
