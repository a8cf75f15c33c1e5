// Package taxonomy implements the location and attribute resolver: a fuzzy,
// hierarchy-aware lookup engine mapping free-text labels to the canonical
// numeric ids of a reference taxonomy. The taxonomy is loaded once per
// process from a workbook with one sheet per dimension and is read-only
// afterwards.
package taxonomy

import (
	"strings"

	"github.com/realpulse/bds-harvester/internal/textutil"
)

// Entry is one row of a taxonomy dimension. District entries record their
// province; ward entries record both district and province, enabling
// parent-scoped lookups.
type Entry struct {
	ID         int64
	Value      string
	Slug       string
	ProvinceID *int64
	DistrictID *int64
}

// Scope restricts a lookup to entries whose recorded parents match an
// already-resolved ancestor. A nil field leaves that axis unconstrained.
type Scope struct {
	ProvinceID *int64
	DistrictID *int64
}

func (s Scope) admits(e Entry) bool {
	if s.ProvinceID != nil && e.ProvinceID != nil && *s.ProvinceID != *e.ProvinceID {
		return false
	}
	if s.DistrictID != nil && e.DistrictID != nil && *s.DistrictID != *e.DistrictID {
		return false
	}
	return true
}

type dimension struct {
	// byKey indexes every known label variant (raw, slug, and the folded
	// form of each) so lookups only ever normalize the query side.
	byKey map[string][]Entry
	// keys preserves registration order so the fuzzy passes are
	// deterministic; words carries each key's precomputed word set.
	keys  []string
	words []map[string]struct{}
}

func (d *dimension) register(key string, e Entry) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	if _, seen := d.byKey[key]; !seen {
		d.keys = append(d.keys, key)
		d.words = append(d.words, textutil.WordSet(key))
	}
	d.byKey[key] = append(d.byKey[key], e)
}

// Resolver answers "label -> canonical id" queries across named dimensions.
type Resolver struct {
	dims map[string]*dimension
}

// New builds a resolver from already-parsed entries, keyed by dimension
// name. Each entry is indexed under its raw value, its slug, and the folded
// form of both.
func New(dims map[string][]Entry) *Resolver {
	r := &Resolver{dims: make(map[string]*dimension, len(dims))}
	for name, entries := range dims {
		dim := &dimension{byKey: make(map[string][]Entry)}
		for _, e := range entries {
			dim.register(strings.ToLower(e.Value), e)
			dim.register(textutil.Fold(e.Value), e)
			if e.Slug != "" {
				dim.register(strings.ToLower(e.Slug), e)
				dim.register(textutil.Fold(e.Slug), e)
			}
		}
		r.dims[strings.TrimSpace(name)] = dim
	}
	return r
}

// Dimensions lists the loaded dimension names.
func (r *Resolver) Dimensions() []string {
	names := make([]string, 0, len(r.dims))
	for name := range r.dims {
		names = append(names, name)
	}
	return names
}

// Resolve looks label up in dimension without parent constraints.
func (r *Resolver) Resolve(dimensionName, label string) (int64, bool) {
	return r.ResolveScoped(dimensionName, label, Scope{})
}

// ResolveScoped looks label up in dimension, restricted to entries whose
// recorded parents do not conflict with scope. Matching proceeds in three
// escalating passes, stopping at the first hit: exact folded key, word-set
// subset/superset, then substring containment. A miss returns (0, false);
// the resolver never guesses.
func (r *Resolver) ResolveScoped(dimensionName, label string, scope Scope) (int64, bool) {
	dim, ok := r.dims[strings.TrimSpace(dimensionName)]
	if !ok {
		return 0, false
	}
	query := textutil.Fold(label)
	if query == "" {
		return 0, false
	}

	if id, ok := pick(dim.byKey[query], scope); ok {
		return id, true
	}

	queryWords := textutil.WordSet(query)
	for i, key := range dim.keys {
		if !textutil.SubsetWords(queryWords, dim.words[i]) {
			continue
		}
		if id, ok := pick(dim.byKey[key], scope); ok {
			return id, true
		}
	}

	for _, key := range dim.keys {
		if !strings.Contains(key, query) && !strings.Contains(query, key) {
			continue
		}
		if id, ok := pick(dim.byKey[key], scope); ok {
			return id, true
		}
	}

	return 0, false
}

func pick(entries []Entry, scope Scope) (int64, bool) {
	for _, e := range entries {
		if scope.admits(e) {
			return e.ID, true
		}
	}
	return 0, false
}
