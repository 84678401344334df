package pagination

import "github.com/Colorex-team/Colorex-System/internal/domain"

// Source describes a paginated collection and which of its fields the
// filters of a Request apply to.
type Source struct {
	Collection string
	// OrderField holds the creation timestamp pages are ordered by, newest first.
	OrderField string
	// OwnerField is matched against Filter.OwnerIDs.
	OwnerField string
	// TagField is an array field matched against Filter.TagIDs.
	TagField string
	// SearchField is a precomputed lowercase field for prefix search.
	// Empty disables the prefix fallback.
	SearchField string
	// Indexed routes searches through the search index when one is configured.
	Indexed bool
}

// ContentSource pages posts, comments or replies by owner.
// Only posts carry tags and searchable titles.
func ContentSource(kind domain.ContentKind) Source {
	src := Source{
		Collection: kind.Collection(),
		OrderField: domain.FieldCreatedAt,
		OwnerField: domain.FieldOwnerUserID,
	}
	if kind == domain.KindPost {
		src.TagField = domain.FieldTagIDs
		src.SearchField = domain.FieldTitleLower
		src.Indexed = true
	}
	return src
}

// FollowersSource pages follow records by followed user: OwnerIDs name the followed users.
func FollowersSource() Source {
	return Source{
		Collection: domain.CollectionFollows,
		OrderField: domain.FieldCreatedAt,
		OwnerField: domain.FieldTargetID,
	}
}

// FollowingSource pages follow records by follower: OwnerIDs name the following users.
func FollowingSource() Source {
	return Source{
		Collection: domain.CollectionFollows,
		OrderField: domain.FieldCreatedAt,
		OwnerField: domain.FieldSubjectID,
	}
}
