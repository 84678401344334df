package pagination

import (
	"context"
	"slices"

	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// searchPage serves a search through the index and resolves the hits to
// store documents. Hits whose document is gone are dropped, so a page can
// hold fewer items than requested while more follow. The filter holds at
// most one owner and no tags.
func (e *Engine) searchPage(ctx context.Context, src Source, f Filter, size int, cursor *Cursor, offset int) (*Result, error) {
	owners := dedupe(f.OwnerIDs)
	owner := ""
	if len(owners) == 1 {
		owner = owners[0]
	}

	req := search.Request{
		Text:        f.Search,
		OwnerUserID: owner,
		Offset:      offset,
		Limit:       size + 1,
	}
	if cursor != nil {
		req.After = &search.Position{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}

	hits, err := e.index.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	hasMore := len(hits.Hits) > size
	page := hits.Hits
	if hasMore {
		page = page[:size]
	}

	ids := make([]string, len(page))
	for i, hit := range page {
		ids[i] = hit.ID
	}
	items, err := e.resolve(ctx, src.Collection, ids)
	if err != nil {
		return nil, err
	}

	res := &Result{Items: items, HasMore: hasMore, Mode: ModeSearch}
	if hasMore {
		last := page[len(page)-1]
		res.NextCursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}

	key := countKey(src, f)
	if n, ok := e.counts.Get(ctx, key); ok {
		res.Total, res.TotalExact = n, true
	} else if n, err := e.index.Count(ctx, f.Search, owner); err == nil {
		res.Total, res.TotalExact = int64(n), true
		e.counts.Set(ctx, key, res.Total)
	} else {
		e.logger.Warn("search count failed", "collection", src.Collection, "error", err)
	}
	return res, nil
}

// resolve loads documents by id in chunks and returns them in ids order.
func (e *Engine) resolve(ctx context.Context, collection string, ids []string) ([]*store.Snapshot, error) {
	byID := make(map[string]*store.Snapshot, len(ids))
	for chunk := range slices.Chunk(ids, store.MaxDisjunction) {
		docs, err := e.store.Collection(collection).Query().WhereIDIn(chunk).Documents(ctx)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			byID[doc.ID] = doc
		}
	}

	items := make([]*store.Snapshot, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			items = append(items, doc)
		}
	}
	return items, nil
}
