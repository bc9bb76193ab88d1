package protocol

// QueryKind discriminates the recursive query algebra (spec.md §4.6):
// Single, Compound(And/Or), GetById, GetByIds.
type QueryKind string

const (
	QuerySingle   QueryKind = "single"
	QueryCompound QueryKind = "compound"
	QueryGetByID  QueryKind = "get_by_id"
	QueryGetByIDs QueryKind = "get_by_ids"
)

// Query is a tagged union over the four query shapes. Exactly one of the
// pointer fields matching Kind is populated; Decode's discriminator
// check happens at the Message level, but query.go's own Validate adds
// the same discipline one level down since Query nests recursively
// inside Compound.
type Query struct {
	Kind     QueryKind      `cbor:"kind"`
	Single   *SingleQuery   `cbor:"single,omitempty"`
	Compound *CompoundQuery `cbor:"compound,omitempty"`
	GetByID  *GetByIDQuery  `cbor:"get_by_id,omitempty"`
	GetByIDs *GetByIDsQuery `cbor:"get_by_ids,omitempty"`
}

// SingleQuery selects a usecase index, optionally filtered by an OPE
// range predicate. UpperLimit/LowerLimit are pointers so "no bound" is
// distinguishable from a bound at 0.
type SingleQuery struct {
	Collection string   `cbor:"collection"`
	Usecase    string   `cbor:"usecase"`
	LowerLimit *float64 `cbor:"lower_limit,omitempty"`
	UpperLimit *float64 `cbor:"upper_limit,omitempty"`
}

// CompoundKind discriminates And/Or combination of child queries.
type CompoundKind string

const (
	CompoundAnd CompoundKind = "and"
	CompoundOr  CompoundKind = "or"
)

// CompoundQuery combines child queries by key-set intersection (And) or
// union (Or) (spec.md §4.6).
type CompoundQuery struct {
	Kind     CompoundKind `cbor:"kind"`
	Children []Query      `cbor:"children"`
}

// GetByIDQuery fetches a single row by id.
type GetByIDQuery struct {
	Collection string `cbor:"collection"`
	ID         string `cbor:"id"`
}

// GetByIDsQuery fetches a batch of rows by id, tolerating dangling ids.
type GetByIDsQuery struct {
	Collection string   `cbor:"collection"`
	IDs        []string `cbor:"ids"`
}

// NewSingleQuery builds an unfiltered usecase-index lookup.
func NewSingleQuery(collection, usecase string) Query {
	return Query{Kind: QuerySingle, Single: &SingleQuery{Collection: collection, Usecase: usecase}}
}

// NewSingleRangeQuery builds a usecase-index lookup filtered by an
// inclusive OPE range.
func NewSingleRangeQuery(collection, usecase string, lower, upper *float64) Query {
	return Query{Kind: QuerySingle, Single: &SingleQuery{
		Collection: collection,
		Usecase:    usecase,
		LowerLimit: lower,
		UpperLimit: upper,
	}}
}

// NewCompoundQuery builds an And/Or combination of children.
func NewCompoundQuery(kind CompoundKind, children ...Query) Query {
	return Query{Kind: QueryCompound, Compound: &CompoundQuery{Kind: kind, Children: children}}
}

// NewGetByIDQuery builds a single-id lookup.
func NewGetByIDQuery(collection, id string) Query {
	return Query{Kind: QueryGetByID, GetByID: &GetByIDQuery{Collection: collection, ID: id}}
}

// NewGetByIDsQuery builds a batch-id lookup.
func NewGetByIDsQuery(collection string, ids []string) Query {
	return Query{Kind: QueryGetByIDs, GetByIDs: &GetByIDsQuery{Collection: collection, IDs: ids}}
}

// Validate checks that exactly the field matching Kind is populated, and
// recurses into Compound children. A malformed Query (wrong/missing
// branch) is a protocol error under the same discipline as a top-level
// tag/discriminator mismatch.
func (q Query) Validate() error {
	switch q.Kind {
	case QuerySingle:
		if q.Single == nil {
			return errMissingBranch(q.Kind)
		}
	case QueryCompound:
		if q.Compound == nil {
			return errMissingBranch(q.Kind)
		}
		if len(q.Compound.Children) == 0 {
			return errEmptyCompound
		}
		for _, child := range q.Compound.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	case QueryGetByID:
		if q.GetByID == nil {
			return errMissingBranch(q.Kind)
		}
	case QueryGetByIDs:
		if q.GetByIDs == nil {
			return errMissingBranch(q.Kind)
		}
	default:
		return errUnknownQueryKind(q.Kind)
	}
	return nil
}
