package domain

import (
	"time"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Association records that a subject user relates to a target (a like or a follow).
// Existence of the record is the sole source of truth for the relation.
type Association struct {
	Key           string    `json:"key"`
	SubjectUserID string    `json:"subject_user_id"`
	TargetID      string    `json:"target_id"`
	CreatedAt     time.Time `json:"created_at"`

	// Follow records carry both users' display fields so that follower
	// lists can be served from the follows collection alone.
	Subject *UserSummary `json:"subject,omitempty"`
	Target  *UserSummary `json:"target,omitempty"`
}

// AssociationKey derives the deterministic document ID of a relation.
func AssociationKey(subjectUserID, targetID string) string {
	return subjectUserID + "_" + targetID
}

// ToDocument renders the association's stored fields.
func (a *Association) ToDocument() store.Document {
	doc := store.Document{
		FieldSubjectID: a.SubjectUserID,
		FieldTargetID:  a.TargetID,
		FieldCreatedAt: a.CreatedAt,
	}
	if a.Subject != nil {
		doc[FieldSubjectName] = a.Subject.Username
		doc[FieldSubjectAvatar] = a.Subject.AvatarURL
	}
	if a.Target != nil {
		doc[FieldTargetName] = a.Target.Username
		doc[FieldTargetAvatar] = a.Target.AvatarURL
	}
	return doc
}

// AssociationFromSnapshot decodes a stored association.
func AssociationFromSnapshot(snap *store.Snapshot) *Association {
	d := snap.Data
	a := &Association{
		Key:           snap.ID,
		SubjectUserID: d.String(FieldSubjectID),
		TargetID:      d.String(FieldTargetID),
		CreatedAt:     d.Time(FieldCreatedAt),
	}
	if _, ok := d[FieldSubjectName]; ok {
		a.Subject = &UserSummary{
			ID:        a.SubjectUserID,
			Username:  d.String(FieldSubjectName),
			AvatarURL: d.String(FieldSubjectAvatar),
		}
	}
	if _, ok := d[FieldTargetName]; ok {
		a.Target = &UserSummary{
			ID:        a.TargetID,
			Username:  d.String(FieldTargetName),
			AvatarURL: d.String(FieldTargetAvatar),
		}
	}
	return a
}
