// Package pagination serves filtered, cursor-stable pages of store documents
// with a best-effort total count.
//
// Pages are ordered by creation time, newest first, with the document id as
// tie break. Filters whose value sets exceed the store's disjunction limit
// are split into chunks of store.MaxDisjunction; each chunk is read up to the
// page end, and the chunk results are concatenated, deduplicated, put back in
// page order and truncated to the page size, so a cursor walk over a chunked
// filter visits every matching document once.
package pagination

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/Colorex-team/Colorex-System/internal/cache"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Page size defaults.
const (
	DefaultPageSize       = 20
	MaxPageSize           = 100
	DefaultCountScanLimit = 5000
)

// prefixSentinel is appended to a search prefix to form the upper bound of its range.
const prefixSentinel = "\uf8ff"

// Mode reports how a page was positioned.
type Mode string

const (
	ModeCursor Mode = "cursor"
	// ModeOffset skips (page-1)*pageSize items. Inserts and deletes between
	// requests can make items repeat or be skipped.
	ModeOffset Mode = "offset"
	ModeSearch Mode = "search"
)

// Config bounds page sizes and total count scans.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	// CountScanLimit bounds the fallback scan that computes totals.
	CountScanLimit int
}

// Filter restricts a page. Empty fields do not filter.
type Filter struct {
	OwnerIDs []string
	TagIDs   []string
	Search   string
}

// Request asks for one page.
type Request struct {
	Source   Source
	Filter   Filter
	PageSize int
	// Cursor resumes after a previous page. It wins over Page.
	Cursor string
	// Page selects offset mode when greater than 1 and no cursor is given.
	Page int
}

// Result is one page of documents.
type Result struct {
	Items []*store.Snapshot
	// Total is the number of documents matching the filter. When TotalExact
	// is false it is a lower bound.
	Total      int64
	TotalExact bool
	NextCursor string
	HasMore    bool
	Mode       Mode
}

// Engine runs paginated queries.
type Engine struct {
	store  *store.Store
	counts cache.CountCache
	index  *search.Index
	cfg    Config
	logger *slog.Logger
}

// New creates an engine. A nil countCache disables caching of totals and a
// nil index limits search to the prefix range of Source.SearchField.
func New(s *store.Store, cfg Config, countCache cache.CountCache, index *search.Index, log *slog.Logger) *Engine {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.CountScanLimit <= 0 {
		cfg.CountScanLimit = DefaultCountScanLimit
	}
	if countCache == nil {
		countCache = cache.Noop{}
	}
	return &Engine{
		store:  s,
		counts: countCache,
		index:  index,
		cfg:    cfg,
		logger: logger.OrDiscard(log),
	}
}

// ClampPageSize applies the default and the maximum to a requested size.
func (e *Engine) ClampPageSize(size int) int {
	if size <= 0 {
		size = e.cfg.DefaultPageSize
	}
	if size > e.cfg.MaxPageSize {
		size = e.cfg.MaxPageSize
	}
	return max(size, 1)
}

// Page returns one page of documents matching req.
func (e *Engine) Page(ctx context.Context, req Request) (*Result, error) {
	src := req.Source
	if src.Collection == "" || src.OrderField == "" {
		return nil, domainerrors.Validation("pagination source requires a collection and an order field")
	}
	if err := checkFilter(src, req.Filter); err != nil {
		return nil, err
	}

	size := e.ClampPageSize(req.PageSize)
	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	offset := 0
	mode := ModeCursor
	if cursor == nil && req.Page > 1 {
		mode = ModeOffset
		offset = (req.Page - 1) * size
	}

	if req.Filter.Search != "" {
		if src.Indexed && e.index != nil && indexSearchable(req.Filter) {
			return e.searchPage(ctx, src, req.Filter, size, cursor, offset)
		}
		if src.SearchField == "" {
			return nil, domainerrors.Validationf("%s has no search index or prefix field", src.Collection)
		}
	}

	queries, err := e.queries(src, req.Filter)
	if err != nil {
		return nil, err
	}

	items, hasMore, err := e.fetch(ctx, src, queries, size, cursor, offset)
	if err != nil {
		return nil, err
	}

	res := &Result{Items: items, HasMore: hasMore, Mode: mode}
	if hasMore {
		res.NextCursor = cursorOf(items[len(items)-1], src.OrderField).Encode()
	}
	res.Total, res.TotalExact = e.total(ctx, src, req.Filter, queries)

	e.logger.Debug("page served",
		"collection", src.Collection,
		"mode", mode,
		"items", len(items),
		"chunks", len(queries),
		"total", res.Total,
		"total_exact", res.TotalExact,
	)
	return res, nil
}

func checkFilter(src Source, f Filter) error {
	if len(f.OwnerIDs) > 0 && src.OwnerField == "" {
		return domainerrors.Validationf("%s cannot be filtered by owner", src.Collection)
	}
	if len(f.TagIDs) > 0 && src.TagField == "" {
		return domainerrors.Validationf("%s cannot be filtered by tag", src.Collection)
	}
	if len(f.OwnerIDs) > 1 && len(f.TagIDs) > 1 {
		return domainerrors.Validation("owner sets and tag sets cannot be combined")
	}
	if f.Search != "" && strings.TrimSpace(f.Search) == "" {
		return domainerrors.Validation("search text is empty")
	}
	return nil
}

// indexSearchable reports whether the search index can serve the filter on
// its own. Other searches use the prefix range of Source.SearchField.
func indexSearchable(f Filter) bool {
	return len(dedupe(f.OwnerIDs)) <= 1 && len(dedupe(f.TagIDs)) == 0
}

// queries builds one store query per chunk of the disjunctive filter. They
// are neither ordered nor positioned, so a single one can be counted from
// the store's indexes.
func (e *Engine) queries(src Source, f Filter) ([]*store.Query, error) {
	base := e.store.Collection(src.Collection).Query()

	owners := dedupe(f.OwnerIDs)
	tags := dedupe(f.TagIDs)

	if len(owners) == 1 {
		base = base.Where(src.OwnerField, store.OpEqual, owners[0])
	}
	if len(tags) == 1 {
		base = base.Where(src.TagField, store.OpArrayContains, tags[0])
	}
	if f.Search != "" {
		prefix := domain.TitleKey(f.Search)
		base = base.
			Where(src.SearchField, store.OpGreaterEqual, prefix).
			Where(src.SearchField, store.OpLessEqual, prefix+prefixSentinel)
	}

	var queries []*store.Query
	switch {
	case len(owners) > 1:
		for _, chunk := range chunks(owners) {
			queries = append(queries, base.Where(src.OwnerField, store.OpIn, chunk))
		}
	case len(tags) > 1:
		for _, chunk := range chunks(tags) {
			queries = append(queries, base.Where(src.TagField, store.OpArrayContainsAny, chunk))
		}
	default:
		queries = []*store.Query{base}
	}

	for _, q := range queries {
		if err := q.Err(); err != nil {
			return nil, err
		}
	}
	return queries, nil
}

// fetch orders and positions every chunk query, merges their results in page
// order and cuts out the page. It returns whether more items follow.
func (e *Engine) fetch(ctx context.Context, src Source, queries []*store.Query, size int, cursor *Cursor, offset int) ([]*store.Snapshot, bool, error) {
	single := len(queries) == 1

	var merged []*store.Snapshot
	seen := make(map[string]bool)
	for _, q := range queries {
		q = q.OrderBy(src.OrderField, store.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		if single {
			q = q.Offset(offset).Limit(size + 1)
		} else {
			q = q.Limit(offset + size + 1)
		}

		docs, err := q.Documents(ctx)
		if err != nil {
			return nil, false, err
		}
		for _, doc := range docs {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			merged = append(merged, doc)
		}
	}

	if !single {
		// Each chunk holds its own first offset+size+1 items, so the merged
		// order is exact up to the page end.
		slices.SortFunc(merged, func(a, b *store.Snapshot) int {
			return cursorOf(b, src.OrderField).compare(cursorOf(a, src.OrderField))
		})
		if offset >= len(merged) {
			return []*store.Snapshot{}, false, nil
		}
		merged = merged[offset:]
	}

	if len(merged) > size {
		return merged[:size], true, nil
	}
	if merged == nil {
		merged = []*store.Snapshot{}
	}
	return merged, false, nil
}

// total resolves the filter's cardinality from the count cache, then the
// store aggregate, then a bounded scan. Failures degrade to the next step
// and never surface.
func (e *Engine) total(ctx context.Context, src Source, f Filter, queries []*store.Query) (int64, bool) {
	key := countKey(src, f)
	if n, ok := e.counts.Get(ctx, key); ok {
		return n, true
	}

	// Chunks of an array-contains-any filter can overlap, so only a single
	// query can be counted by aggregation.
	if len(queries) == 1 {
		n, err := queries[0].Count(ctx)
		if err == nil {
			e.counts.Set(ctx, key, n)
			return n, true
		}
		if !errors.Is(err, store.ErrAggregateUnsupported) {
			e.logger.Warn("aggregate count failed, scanning", "collection", src.Collection, "error", err)
		}
	}

	n, exact, err := e.scanCount(ctx, queries)
	if err != nil {
		e.logger.Warn("count scan failed", "collection", src.Collection, "error", err)
		return 0, false
	}
	if exact {
		e.counts.Set(ctx, key, n)
	}
	return n, exact
}

func (e *Engine) scanCount(ctx context.Context, queries []*store.Query) (int64, bool, error) {
	limit := e.cfg.CountScanLimit
	seen := make(map[string]bool)
	for _, q := range queries {
		docs, err := q.Limit(limit + 1).Documents(ctx)
		if err != nil {
			return 0, false, err
		}
		for _, doc := range docs {
			seen[doc.ID] = true
		}
		if len(seen) > limit {
			return int64(limit), false, nil
		}
	}
	return int64(len(seen)), true, nil
}

func countKey(src Source, f Filter) string {
	owners := dedupe(f.OwnerIDs)
	tags := dedupe(f.TagIDs)
	slices.Sort(owners)
	slices.Sort(tags)
	return cache.Key(
		src.Collection,
		src.OwnerField+"="+strings.Join(owners, ","),
		src.TagField+"="+strings.Join(tags, ","),
		"q="+domain.TitleKey(f.Search),
	)
}

// chunks splits ids into groups the store accepts in one disjunctive filter.
func chunks(ids []string) [][]string {
	var out [][]string
	for chunk := range slices.Chunk(ids, store.MaxDisjunction) {
		out = append(out, chunk)
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
