package search

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Position is a point in the (created_at desc, id desc) order of results.
type Position struct {
	CreatedAt time.Time
	ID        string
}

// Request describes a title search.
type Request struct {
	// Text is matched as a prefix against title words; every word must match.
	Text string
	// OwnerUserID restricts results to one owner when set.
	OwnerUserID string
	// After resumes strictly after a position. It cannot be combined with Offset.
	After  *Position
	Offset int
	Limit  int
}

// Result holds matching posts, newest first.
type Result struct {
	Hits []Position
}

// IDs returns the post ids of the hits in order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, hit := range r.Hits {
		ids[i] = hit.ID
	}
	return ids
}

// Search returns post ids ordered newest first with id as tie break.
func (s *Index) Search(ctx context.Context, req Request) (*Result, error) {
	q, err := buildQuery(req.Text, req.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if req.After != nil && req.Offset > 0 {
		return nil, domainerrors.Validation("search position and offset are mutually exclusive")
	}

	searchRequest := bleve.NewSearchRequestOptions(q, req.Limit, req.Offset, false)
	searchRequest.SortBy([]string{"-created_at", "-_id"})
	searchRequest.Fields = []string{"created_at"}
	if req.After != nil {
		searchRequest.SearchAfter = []string{store.FormatTime(req.After.CreatedAt), req.After.ID}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{Hits: make([]Position, 0, len(searchResult.Hits))}
	for _, hit := range searchResult.Hits {
		pos := Position{ID: hit.ID}
		if raw, ok := hit.Fields["created_at"].(string); ok {
			if t, err := store.ParseTime(raw); err == nil {
				pos.CreatedAt = t
			}
		}
		result.Hits = append(result.Hits, pos)
	}
	return result, nil
}

// Count returns the number of posts matching text and owner.
func (s *Index) Count(ctx context.Context, text, ownerUserID string) (uint64, error) {
	q, err := buildQuery(text, ownerUserID)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchResult, err := s.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, 0, 0, false))
	if err != nil {
		return 0, fmt.Errorf("execute count: %w", err)
	}
	return searchResult.Total, nil
}

func buildQuery(text, ownerUserID string) (query.Query, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, domainerrors.Validation("search text is empty")
	}

	queries := make([]query.Query, 0, len(tokens)+1)
	for _, token := range tokens {
		prefixQuery := bleve.NewPrefixQuery(token)
		prefixQuery.SetField("title")
		queries = append(queries, prefixQuery)
	}

	if ownerUserID != "" {
		ownerQuery := bleve.NewTermQuery(ownerUserID)
		ownerQuery.SetField("owner_user_id")
		queries = append(queries, ownerQuery)
	}

	return bleve.NewConjunctionQuery(queries...), nil
}

// tokenize lowercases text and splits it into words the way the title analyzer does.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
