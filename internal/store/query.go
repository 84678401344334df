package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

// Operator is a field comparison used in Query.Where.
type Operator string

// Supported operators.
const (
	OpEqual            Operator = "=="
	OpLess             Operator = "<"
	OpLessEqual        Operator = "<="
	OpGreater          Operator = ">"
	OpGreaterEqual     Operator = ">="
	OpIn               Operator = "in"
	OpArrayContains    Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
)

// MaxDisjunction is the largest value list accepted by in, array-contains-any
// and WhereIDIn. Callers with larger sets must chunk.
const MaxDisjunction = 10

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

var errStopIteration = errors.New("stop iteration")

type filter struct {
	field  string
	op     Operator
	value  any
	values []any
}

type ordering struct {
	field string
	dir   Direction
}

// Query is an immutable query description. Every builder method returns a
// new Query, so a base query can be shared and specialized per chunk or page.
//
// Results are ordered by the OrderBy fields followed by the document ID, whose
// direction follows the last OrderBy field. Documents missing an OrderBy field
// are excluded from results.
type Query struct {
	store      *Store
	collection string

	filters    []filter
	idIn       []string
	hasIDIn    bool
	orders     []ordering
	startAfter []any
	offset     int
	limit      int

	err error
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = slices.Clone(q.filters)
	c.idIn = slices.Clone(q.idIn)
	c.orders = slices.Clone(q.orders)
	c.startAfter = slices.Clone(q.startAfter)
	return &c
}

func (q *Query) fail(err error) *Query {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Where adds a field filter.
func (q *Query) Where(field string, op Operator, value any) *Query {
	if field == "" {
		return q.fail(invalidQuery("empty field name"))
	}

	f := filter{field: field, op: op}
	switch op {
	case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		f.value = normalizeValue(value)
	case OpIn, OpArrayContainsAny:
		values, ok := toSlice(value)
		if !ok {
			return q.fail(invalidQuery(fmt.Sprintf("%s requires a list value", op)))
		}
		if err := checkDisjunction(string(op), len(values)); err != nil {
			return q.fail(err)
		}
		if q.disjunctive() {
			return q.fail(invalidQuery("at most one in, array-contains-any or id-in filter per query"))
		}
		f.values = make([]any, len(values))
		for i, v := range values {
			f.values[i] = normalizeValue(v)
		}
	default:
		return q.fail(invalidQuery(fmt.Sprintf("unsupported operator %q", op)))
	}

	c := q.clone()
	c.filters = append(c.filters, f)
	return c
}

// WhereIDIn restricts results to the given document IDs.
func (q *Query) WhereIDIn(ids []string) *Query {
	if err := checkDisjunction("id-in", len(ids)); err != nil {
		return q.fail(err)
	}
	if q.disjunctive() {
		return q.fail(invalidQuery("at most one in, array-contains-any or id-in filter per query"))
	}
	c := q.clone()
	c.idIn = slices.Clone(ids)
	c.hasIDIn = true
	return c
}

// OrderBy appends a sort field.
func (q *Query) OrderBy(field string, dir Direction) *Query {
	if field == "" {
		return q.fail(invalidQuery("empty order field"))
	}
	c := q.clone()
	c.orders = append(c.orders, ordering{field: field, dir: dir})
	return c
}

// StartAfter positions the query after the given cursor. Values correspond to
// the OrderBy fields in order; one extra trailing value is matched against the
// document ID tie-breaker.
func (q *Query) StartAfter(values ...any) *Query {
	if len(values) == 0 {
		return q
	}
	if len(values) > len(q.orders)+1 {
		return q.fail(invalidQuery("too many cursor values for order"))
	}
	c := q.clone()
	c.startAfter = make([]any, len(values))
	for i, v := range values {
		c.startAfter[i] = normalizeValue(v)
	}
	return c
}

// Offset skips the first n matching documents.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(invalidQuery("negative offset"))
	}
	c := q.clone()
	c.offset = n
	return c
}

// Limit caps the number of documents returned. Zero means unlimited.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail(invalidQuery("negative limit"))
	}
	c := q.clone()
	c.limit = n
	return c
}

// Err returns the first construction error, if any.
func (q *Query) Err() error {
	return q.err
}

// Documents runs the query and returns matching documents.
func (q *Query) Documents(ctx context.Context) ([]*Snapshot, error) {
	if q.err != nil {
		return nil, q.err
	}

	var results []*Snapshot
	err := q.store.view(ctx, func(tx *Txn) error {
		var err error
		results, err = q.run(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DocumentsTx runs the query inside an existing transaction. Reads made here
// take part in the transaction's conflict detection.
func (q *Query) DocumentsTx(ctx context.Context, tx *Txn) ([]*Snapshot, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.run(ctx, tx)
}

// Count returns the number of documents the query would return. A query made
// of one indexed filter is counted from index keys without reading documents.
// Returns ErrAggregateUnsupported when aggregation is disabled on the store.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if !q.store.aggregateCount {
		return 0, ErrAggregateUnsupported
	}

	var n int64
	err := q.store.view(ctx, func(tx *Txn) error {
		count, ok, err := q.countFromIndex(ctx, tx)
		if err != nil {
			return err
		}
		if ok {
			n = count
			return nil
		}

		matched, err := q.run(ctx, tx)
		if err != nil {
			return err
		}
		n = int64(len(matched))
		return nil
	})
	return n, err
}

func (q *Query) disjunctive() bool {
	if q.hasIDIn {
		return true
	}
	for _, f := range q.filters {
		if f.op == OpIn || f.op == OpArrayContainsAny {
			return true
		}
	}
	return false
}

func checkDisjunction(name string, n int) error {
	if n == 0 {
		return invalidQuery(name + " requires at least one value")
	}
	if n > MaxDisjunction {
		return invalidQuery(fmt.Sprintf("%s accepts at most %d values, got %d", name, MaxDisjunction, n))
	}
	return nil
}

// run evaluates the query against tx.
func (q *Query) run(ctx context.Context, tx *Txn) ([]*Snapshot, error) {
	candidates, err := q.candidates(ctx, tx)
	if err != nil {
		return nil, err
	}

	matched := candidates[:0]
	for _, snap := range candidates {
		if q.matches(snap) {
			matched = append(matched, snap)
		}
	}

	slices.SortFunc(matched, q.compareSnapshots)

	if len(q.startAfter) > 0 {
		idx := 0
		for idx < len(matched) && q.compareToCursor(matched[idx]) <= 0 {
			idx++
		}
		matched = matched[idx:]
	}

	if q.offset > 0 {
		if q.offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.offset:]
	}

	if q.limit > 0 && len(matched) > q.limit {
		matched = matched[:q.limit]
	}

	return matched, nil
}

// candidates loads the documents the filters are evaluated on: point reads
// for an id-in filter, the index entries of an indexed equality filter, or
// otherwise a prefix scan over the collection.
func (q *Query) candidates(ctx context.Context, tx *Txn) ([]*Snapshot, error) {
	if q.hasIDIn {
		return q.load(tx, q.idIn)
	}
	if f, ok := q.indexFilter(); ok {
		ids, err := q.indexedIDs(ctx, tx, f)
		if err != nil {
			return nil, err
		}
		return q.load(tx, ids)
	}

	prefix := collectionPrefix(q.collection)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var out []*Snapshot
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := it.Item()
		docID := idFromKey(item.Key(), prefix)

		var doc Document
		err := item.Value(func(val []byte) error {
			var decodeErr error
			doc, decodeErr = decodeDocument(val)
			return decodeErr
		})
		if err != nil {
			return nil, err
		}
		out = append(out, &Snapshot{ID: docID, Data: doc})
	}
	return out, nil
}

// load reads the listed documents, skipping duplicates and missing ones.
func (q *Query) load(tx *Txn, ids []string) ([]*Snapshot, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]*Snapshot, 0, len(ids))
	for _, docID := range ids {
		if seen[docID] {
			continue
		}
		seen[docID] = true

		snap, err := tx.Get(q.collection, docID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// indexFilter picks the filter that drives the query through an index.
// Single-value filters are preferred over disjunctions.
func (q *Query) indexFilter() (filter, bool) {
	var disjunction *filter
	for i, f := range q.filters {
		if !q.store.isIndexed(q.collection, f.field) {
			continue
		}
		if _, _, ok := f.indexLookups(); !ok {
			continue
		}
		if f.op == OpEqual || f.op == OpArrayContains {
			return f, true
		}
		if disjunction == nil {
			disjunction = &q.filters[i]
		}
	}
	if disjunction != nil {
		return *disjunction, true
	}
	return filter{}, false
}

// indexLookups returns the index kind and values a filter reads, or false
// when the filter cannot be answered from an index.
func (f filter) indexLookups() (byte, []string, bool) {
	var kind byte
	var raw []any
	switch f.op {
	case OpEqual:
		kind, raw = indexScalar, []any{f.value}
	case OpIn:
		kind, raw = indexScalar, f.values
	case OpArrayContains:
		kind, raw = indexElement, []any{f.value}
	case OpArrayContainsAny:
		kind, raw = indexElement, f.values
	default:
		return 0, nil, false
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			return 0, nil, false
		}
		if _, ok := indexString(str); !ok {
			return 0, nil, false
		}
		values = append(values, str)
	}
	return kind, values, true
}

func (q *Query) indexedIDs(ctx context.Context, tx *Txn, f filter) ([]string, error) {
	kind, values, _ := f.indexLookups()
	var ids []string
	for _, value := range values {
		found, err := tx.lookup(ctx, q.collection, f.field, kind, value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

// countFromIndex counts the query from index keys alone. It applies when the
// query is a single indexed filter with no ordering, positioning or limit.
func (q *Query) countFromIndex(ctx context.Context, tx *Txn) (int64, bool, error) {
	if q.hasIDIn || len(q.filters) != 1 || len(q.orders) > 0 || len(q.startAfter) > 0 || q.offset > 0 || q.limit > 0 {
		return 0, false, nil
	}
	f, ok := q.indexFilter()
	if !ok {
		return 0, false, nil
	}

	ids, err := q.indexedIDs(ctx, tx, f)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, true, nil
	}
	seen := make(map[string]bool, len(ids))
	for _, docID := range ids {
		seen[docID] = true
	}
	return int64(len(seen)), true, nil
}

func (q *Query) matches(snap *Snapshot) bool {
	for _, o := range q.orders {
		if _, ok := snap.Data[o.field]; !ok {
			return false
		}
	}
	for _, f := range q.filters {
		if !f.matches(snap.Data) {
			return false
		}
	}
	return true
}

func (f filter) matches(doc Document) bool {
	v, ok := doc[f.field]
	if !ok {
		return false
	}

	switch f.op {
	case OpEqual:
		return sameClass(v, f.value) && compareValues(v, f.value) == 0
	case OpLess:
		return sameClass(v, f.value) && compareValues(v, f.value) < 0
	case OpLessEqual:
		return sameClass(v, f.value) && compareValues(v, f.value) <= 0
	case OpGreater:
		return sameClass(v, f.value) && compareValues(v, f.value) > 0
	case OpGreaterEqual:
		return sameClass(v, f.value) && compareValues(v, f.value) >= 0
	case OpIn:
		return containsValue(f.values, v)
	case OpArrayContains:
		arr, ok := v.([]any)
		return ok && containsValue(arr, f.value)
	case OpArrayContainsAny:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, want := range f.values {
			if containsValue(arr, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// sameClass restricts range and equality filters to values of the same type,
// so that "< 5" never matches a string.
func sameClass(a, b any) bool {
	return classify(normalizeValue(a)) == classify(normalizeValue(b))
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if sameClass(item, v) && compareValues(item, v) == 0 {
			return true
		}
	}
	return false
}

// idDirection is the direction of the implicit ID tie-breaker.
func (q *Query) idDirection() Direction {
	if len(q.orders) == 0 {
		return Asc
	}
	return q.orders[len(q.orders)-1].dir
}

func (q *Query) compareSnapshots(a, b *Snapshot) int {
	for _, o := range q.orders {
		c := compareValues(a.Data[o.field], b.Data[o.field])
		if o.dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	c := compareValues(a.ID, b.ID)
	if q.idDirection() == Desc {
		c = -c
	}
	return c
}

// compareToCursor reports where snap sorts relative to the StartAfter
// position: negative or zero means at or before it.
func (q *Query) compareToCursor(snap *Snapshot) int {
	for i, cv := range q.startAfter {
		var c int
		if i < len(q.orders) {
			o := q.orders[i]
			c = compareValues(snap.Data[o.field], cv)
			if o.dir == Desc {
				c = -c
			}
		} else {
			c = compareValues(snap.ID, cv)
			if q.idDirection() == Desc {
				c = -c
			}
		}
		if c != 0 {
			return c
		}
	}
	return 0
}
