// Package search maintains a full-text index over post titles.
//
// The index is a secondary structure: the document store stays the source of
// truth and search results are resolved back to store documents by id.
package search

import (
	"time"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// PostDocument is the indexed projection of a post.
type PostDocument struct {
	ID          string
	Title       string
	OwnerUserID string
	CreatedAt   time.Time
}

// PostDocumentFrom projects a post. Returns nil for other content kinds.
func PostDocumentFrom(item *domain.ContentItem) *PostDocument {
	if item == nil || item.Kind != domain.KindPost {
		return nil
	}
	return &PostDocument{
		ID:          item.ID,
		Title:       item.Title,
		OwnerUserID: item.OwnerUserID,
		CreatedAt:   item.CreatedAt,
	}
}

// toMap uses the field names of the index mapping.
func (d *PostDocument) toMap() map[string]any {
	return map[string]any{
		"title":         d.Title,
		"owner_user_id": d.OwnerUserID,
		"created_at":    store.FormatTime(d.CreatedAt),
	}
}
