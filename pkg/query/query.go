// Package query implements the query engine (C7): it resolves the
// recursive Single/Compound/GetById/GetByIds algebra (pkg/protocol)
// against a pkg/storage.Store into a deduplicated, ordered set of row
// keys, then fetches their values.
package query

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/docstore/pkg/protocol"
	"github.com/cuemby/docstore/pkg/storage"
)

// Engine executes queries against a single storage backend.
type Engine struct {
	store storage.Store
}

// NewEngine builds a query engine over store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Resolve returns the ordered, deduplicated set of full row keys
// ("collection:id") matching q. Dangling usecase-index entries and
// missing GetByIds ids are tolerated by omission (spec.md §4.6).
func (e *Engine) Resolve(q protocol.Query) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	switch q.Kind {
	case protocol.QuerySingle:
		return e.resolveSingle(q.Single)
	case protocol.QueryCompound:
		return e.resolveCompound(q.Compound)
	case protocol.QueryGetByID:
		return e.resolveGetByID(q.GetByID)
	case protocol.QueryGetByIDs:
		return e.resolveGetByIDs(q.GetByIDs)
	default:
		return nil, fmt.Errorf("query: unknown kind %q", q.Kind)
	}
}

// ResolveValues resolves q and fetches the matching rows in the same
// order Resolve returned their keys.
func (e *Engine) ResolveValues(q protocol.Query) (keys []string, values [][]byte, err error) {
	keys, err = e.Resolve(q)
	if err != nil {
		return nil, nil, err
	}

	fetched, err := e.store.BatchGet(keys)
	if err != nil {
		return nil, nil, err
	}

	values = make([][]byte, 0, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := fetched[k]
		if !ok {
			// Vanished between Resolve and BatchGet (concurrent Delete);
			// tolerated the same as a dangling index entry.
			continue
		}
		ordered = append(ordered, k)
		values = append(values, v)
	}
	return ordered, values, nil
}

// IncludesNonces reports whether q's result should carry nonces: spec.md
// §4.6 fetches nonces alongside data for every leaf except an
// OPE-range-filtered Single, and a Compound carries nonces if any child
// does.
func (e *Engine) IncludesNonces(q protocol.Query) bool {
	return hasNonOPELeaf(q)
}

func hasNonOPELeaf(q protocol.Query) bool {
	if q.Kind == protocol.QueryCompound {
		if q.Compound == nil {
			return false
		}
		for _, child := range q.Compound.Children {
			if hasNonOPELeaf(child) {
				return true
			}
		}
		return false
	}
	return !isOPELeaf(q)
}

func isOPELeaf(q protocol.Query) bool {
	return q.Kind == protocol.QuerySingle && q.Single != nil &&
		(q.Single.LowerLimit != nil || q.Single.UpperLimit != nil)
}

// ResolveWithNonces resolves q's keys and values, additionally fetching
// nonces when IncludesNonces(q) is true. nonces is nil when they are not
// applicable, matching QueryResponse.Nonces' optionality.
func (e *Engine) ResolveWithNonces(q protocol.Query) (keys []string, values [][]byte, nonces [][]byte, err error) {
	keys, values, err = e.ResolveValues(q)
	if err != nil {
		return nil, nil, nil, err
	}
	if !e.IncludesNonces(q) {
		return keys, values, nil, nil
	}

	nonceByKey, err := e.store.BatchGetNonces(keys)
	if err != nil {
		return nil, nil, nil, err
	}
	nonces = make([][]byte, len(keys))
	for i, k := range keys {
		nonces[i] = nonceByKey[k]
	}
	return keys, values, nonces, nil
}

func (e *Engine) resolveSingle(s *protocol.SingleQuery) ([]string, error) {
	keys, err := e.store.UsecaseIndex(s.Collection, s.Usecase)
	if err != nil {
		return nil, err
	}
	if s.LowerLimit == nil && s.UpperLimit == nil {
		return keys, nil
	}
	return e.filterByRange(keys, s.LowerLimit, s.UpperLimit)
}

// filterByRange keeps only keys whose CBOR-float value falls within
// [lower, upper] inclusive (spec.md §4.6, property P7). A key whose
// value fails to decode as a float, or is missing entirely, is dropped
// rather than erroring: both are dangling-index conditions.
func (e *Engine) filterByRange(keys []string, lower, upper *float64) ([]string, error) {
	values, err := e.store.BatchGet(keys)
	if err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		raw, ok := values[k]
		if !ok {
			continue
		}
		var v float64
		if err := cbor.Unmarshal(raw, &v); err != nil {
			continue
		}
		if lower != nil && v < *lower {
			continue
		}
		if upper != nil && v > *upper {
			continue
		}
		filtered = append(filtered, k)
	}
	return filtered, nil
}

func (e *Engine) resolveCompound(c *protocol.CompoundQuery) ([]string, error) {
	sets := make([][]string, 0, len(c.Children))
	for _, child := range c.Children {
		keys, err := e.Resolve(child)
		if err != nil {
			return nil, err
		}
		sets = append(sets, keys)
	}

	switch c.Kind {
	case protocol.CompoundAnd:
		return intersect(sets), nil
	case protocol.CompoundOr:
		return union(sets), nil
	default:
		return nil, fmt.Errorf("query: unknown compound kind %q", c.Kind)
	}
}

func (e *Engine) resolveGetByID(g *protocol.GetByIDQuery) ([]string, error) {
	_, ok, err := e.store.GetData(g.Collection, g.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []string{storage.DataKey(g.Collection, g.ID)}, nil
}

func (e *Engine) resolveGetByIDs(g *protocol.GetByIDsQuery) ([]string, error) {
	keys := make([]string, 0, len(g.IDs))
	for _, id := range g.IDs {
		_, ok, err := e.store.GetData(g.Collection, id)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, storage.DataKey(g.Collection, id))
		}
	}
	return keys, nil
}

// intersect returns the ordered, deduplicated intersection of sets,
// preserving the order keys first appear in sets[0].
func intersect(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, set := range sets {
		seen := make(map[string]bool, len(set))
		for _, k := range set {
			if seen[k] {
				continue
			}
			seen[k] = true
			counts[k]++
		}
	}

	result := make([]string, 0, len(sets[0]))
	emitted := make(map[string]bool)
	for _, k := range sets[0] {
		if emitted[k] {
			continue
		}
		emitted[k] = true
		if counts[k] == len(sets) {
			result = append(result, k)
		}
	}
	return result
}

// union returns the ordered, deduplicated union of sets, preserving
// first-seen order across sets in argument order.
func union(sets [][]string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, set := range sets {
		for _, k := range set {
			if seen[k] {
				continue
			}
			seen[k] = true
			result = append(result, k)
		}
	}
	return result
}
