package domain

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

// TagRef is a hashtag shared by all users.
// PostCount equals the number of live content items whose tag set includes the tag.
type TagRef struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"` // Unique lookup key
	PostCount      int64     `json:"post_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeTagName produces the unique lookup key of a tag name:
// NFKC-folded, trimmed, lowercased, a leading '#' dropped and inner
// whitespace runs collapsed to a single space.
func NormalizeTagName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	s = strings.ToLower(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// ToDocument renders the tag's stored fields.
func (t *TagRef) ToDocument() store.Document {
	return store.Document{
		FieldName:           t.Name,
		FieldNormalizedName: t.NormalizedName,
		FieldPostCount:      t.PostCount,
		FieldCreatedAt:      t.CreatedAt,
	}
}

// TagRefFromSnapshot decodes a stored tag.
func TagRefFromSnapshot(snap *store.Snapshot) *TagRef {
	d := snap.Data
	return &TagRef{
		ID:             snap.ID,
		Name:           d.String(FieldName),
		NormalizedName: d.String(FieldNormalizedName),
		PostCount:      d.Int(FieldPostCount),
		CreatedAt:      d.Time(FieldCreatedAt),
	}
}
