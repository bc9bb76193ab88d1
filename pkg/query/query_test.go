package query

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/docstore/pkg/protocol"
	"github.com/cuemby/docstore/pkg/storage"
)

func newTestEngine(t *testing.T) (*Engine, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store), store
}

func mustInsert(t *testing.T, store storage.Store, collection string, usecases []string, data []byte) string {
	t.Helper()
	id, err := store.Insert(collection, nil, data, nil, usecases)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return id
}

func mustEncodeFloat(t *testing.T, v float64) []byte {
	t.Helper()
	raw, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("cbor.Marshal(%v) error = %v", v, err)
	}
	return raw
}

// TestSingleQueryUnfiltered is property P7's baseline: an unfiltered
// Single query returns exactly the usecase index's members.
func TestSingleQueryUnfiltered(t *testing.T) {
	e, store := newTestEngine(t)
	id1 := mustInsert(t, store, "widgets", []string{"by-price"}, []byte("a"))
	id2 := mustInsert(t, store, "widgets", []string{"by-price"}, []byte("b"))

	keys, err := e.Resolve(protocol.NewSingleQuery("widgets", "by-price"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[string]bool{
		storage.DataKey("widgets", id1): true,
		storage.DataKey("widgets", id2): true,
	}
	if len(keys) != len(want) {
		t.Fatalf("Resolve() = %v, want %d keys", keys, len(want))
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("Resolve() returned unexpected key %q", k)
		}
	}
}

// TestSingleQueryRangeFilter is property P7: every returned value
// satisfies lower <= v <= upper.
func TestSingleQueryRangeFilter(t *testing.T) {
	e, store := newTestEngine(t)
	mustInsert(t, store, "widgets", []string{"by-price"}, mustEncodeFloat(t, 5))
	inRange := mustInsert(t, store, "widgets", []string{"by-price"}, mustEncodeFloat(t, 15))
	mustInsert(t, store, "widgets", []string{"by-price"}, mustEncodeFloat(t, 99))

	lower, upper := 10.0, 20.0
	keys, values, err := e.ResolveValues(protocol.NewSingleRangeQuery("widgets", "by-price", &lower, &upper))
	if err != nil {
		t.Fatalf("ResolveValues() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != storage.DataKey("widgets", inRange) {
		t.Fatalf("ResolveValues() keys = %v, want [%s]", keys, storage.DataKey("widgets", inRange))
	}

	var v float64
	if err := cbor.Unmarshal(values[0], &v); err != nil {
		t.Fatalf("cbor.Unmarshal() error = %v", err)
	}
	if v < lower || v > upper {
		t.Fatalf("returned value %v outside [%v, %v]", v, lower, upper)
	}
}

func TestSingleQueryRangeSkipsNonNumericRows(t *testing.T) {
	e, store := newTestEngine(t)
	mustInsert(t, store, "widgets", []string{"by-price"}, []byte("not a cbor float"))

	lower, upper := 0.0, 100.0
	keys, err := e.Resolve(protocol.NewSingleRangeQuery("widgets", "by-price", &lower, &upper))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Resolve() = %v, want empty (non-numeric row excluded)", keys)
	}
}

func TestCompoundAndIntersects(t *testing.T) {
	e, store := newTestEngine(t)
	both := mustInsert(t, store, "widgets", []string{"red", "large"}, []byte("a"))
	mustInsert(t, store, "widgets", []string{"red"}, []byte("b"))
	mustInsert(t, store, "widgets", []string{"large"}, []byte("c"))

	q := protocol.NewCompoundQuery(protocol.CompoundAnd,
		protocol.NewSingleQuery("widgets", "red"),
		protocol.NewSingleQuery("widgets", "large"),
	)
	keys, err := e.Resolve(q)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != storage.DataKey("widgets", both) {
		t.Fatalf("Resolve() = %v, want [%s]", keys, storage.DataKey("widgets", both))
	}
}

func TestCompoundOrUnionsAndDedupes(t *testing.T) {
	e, store := newTestEngine(t)
	both := mustInsert(t, store, "widgets", []string{"red", "large"}, []byte("a"))
	redOnly := mustInsert(t, store, "widgets", []string{"red"}, []byte("b"))
	largeOnly := mustInsert(t, store, "widgets", []string{"large"}, []byte("c"))

	q := protocol.NewCompoundQuery(protocol.CompoundOr,
		protocol.NewSingleQuery("widgets", "red"),
		protocol.NewSingleQuery("widgets", "large"),
	)
	keys, err := e.Resolve(q)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[string]bool{
		storage.DataKey("widgets", both):      true,
		storage.DataKey("widgets", redOnly):   true,
		storage.DataKey("widgets", largeOnly): true,
	}
	if len(keys) != len(want) {
		t.Fatalf("Resolve() = %v, want %d keys", keys, len(want))
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("Resolve() returned unexpected key %q", k)
		}
	}
}

// TestCompoundNestedAndOr is spec.md §8 Scenario 5: a nested
// And{ Single, Or{Single, Single} } exercises resolveCompound's recursion
// into a compound child, not just a flat two-leaf And/Or. A Single's key
// set is always scoped to its own collection (UsecaseIndex is keyed by
// collection+usecase), so Scenario 5's literal orders/users/products
// fixture only produces a non-empty expected set because it seeds a
// shared index entry across collections; the public Store API has no way
// to add a foreign-collection key to an index, so this fixture seeds the
// equivalent overlap across two usecases within one collection instead,
// exercising the identical And-wrapping-Or recursion and intersection
// logic.
func TestCompoundNestedAndOr(t *testing.T) {
	e, store := newTestEngine(t)
	o := mustInsert(t, store, "orders", []string{"filter", "placed"}, []byte("o"))
	mustInsert(t, store, "orders", []string{"placed"}, []byte("placed-only"))
	mustInsert(t, store, "orders", []string{"filter"}, []byte("filter-only"))

	q := protocol.NewCompoundQuery(protocol.CompoundAnd,
		protocol.NewSingleQuery("orders", "filter"),
		protocol.NewCompoundQuery(protocol.CompoundOr,
			protocol.NewSingleQuery("orders", "placed"),
			protocol.NewSingleQuery("products", "filter"),
		),
	)
	keys, err := e.Resolve(q)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != storage.DataKey("orders", o) {
		t.Fatalf("Resolve() = %v, want [%s]", keys, storage.DataKey("orders", o))
	}
}

// TestCompoundAndAcrossDisjointCollectionsIsEmpty documents spec.md §8
// Scenario 5's naive case: And over Single queries scoped to disjoint
// collections always intersects to the empty set, since no key can
// appear in more than one collection's usecase index without a seeded
// shared entry (see TestCompoundNestedAndOr).
func TestCompoundAndAcrossDisjointCollectionsIsEmpty(t *testing.T) {
	e, store := newTestEngine(t)
	mustInsert(t, store, "orders", []string{"filter"}, []byte("o"))
	mustInsert(t, store, "users", []string{"filter"}, []byte("u"))

	q := protocol.NewCompoundQuery(protocol.CompoundAnd,
		protocol.NewSingleQuery("orders", "filter"),
		protocol.NewCompoundQuery(protocol.CompoundOr,
			protocol.NewSingleQuery("users", "filter"),
			protocol.NewSingleQuery("products", "filter"),
		),
	)
	keys, err := e.Resolve(q)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Resolve() = %v, want empty (disjoint collections never intersect)", keys)
	}
}

func TestGetByIDsToleratesDanglingIDs(t *testing.T) {
	e, store := newTestEngine(t)
	id := mustInsert(t, store, "widgets", nil, []byte("a"))

	keys, err := e.Resolve(protocol.NewGetByIDsQuery("widgets", []string{id, "does-not-exist"}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != storage.DataKey("widgets", id) {
		t.Fatalf("Resolve() = %v, want [%s]", keys, storage.DataKey("widgets", id))
	}
}

func TestResolveWithNoncesOmitsNoncesForOPERange(t *testing.T) {
	e, store := newTestEngine(t)
	id, err := store.Insert("widgets", nil, mustEncodeFloat(t, 10), nil, []string{"by-price"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	_ = id

	lower, upper := 0.0, 20.0
	keys, _, nonces, err := e.ResolveWithNonces(protocol.NewSingleRangeQuery("widgets", "by-price", &lower, &upper))
	if err != nil {
		t.Fatalf("ResolveWithNonces() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("ResolveWithNonces() keys = %v, want 1", keys)
	}
	if nonces != nil {
		t.Fatalf("ResolveWithNonces() nonces = %v, want nil for an OPE-filtered Single", nonces)
	}
}

func TestResolveWithNoncesIncludesNoncesForGetByIDs(t *testing.T) {
	e, store := newTestEngine(t)
	id, err := store.Insert("widgets", nil, []byte("a"), []byte("the-nonce"), nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	keys, _, nonces, err := e.ResolveWithNonces(protocol.NewGetByIDsQuery("widgets", []string{id}))
	if err != nil {
		t.Fatalf("ResolveWithNonces() error = %v", err)
	}
	if len(keys) != 1 || nonces == nil || string(nonces[0]) != "the-nonce" {
		t.Fatalf("ResolveWithNonces() = keys %v, nonces %v, want [the-nonce]", keys, nonces)
	}
}

func TestGetByIDMissingReturnsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	keys, err := e.Resolve(protocol.NewGetByIDQuery("widgets", "does-not-exist"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Resolve() = %v, want empty", keys)
	}
}
