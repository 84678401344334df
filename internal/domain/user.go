package domain

import (
	"time"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

// UserProfile is the user document that carries the follow counters.
type UserProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summary returns the display fields of the profile.
func (u *UserProfile) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// UserSummary is the minimal user shape embedded in follower lists.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ToDocument renders the profile's stored fields.
func (u *UserProfile) ToDocument() store.Document {
	return store.Document{
		FieldUsername:       u.Username,
		FieldAvatarURL:      u.AvatarURL,
		FieldFollowersCount: u.FollowersCount,
		FieldFollowingCount: u.FollowingCount,
		FieldCreatedAt:      u.CreatedAt,
		FieldUpdatedAt:      u.UpdatedAt,
	}
}

// UserProfileFromSnapshot decodes a stored user profile.
func UserProfileFromSnapshot(snap *store.Snapshot) *UserProfile {
	d := snap.Data
	return &UserProfile{
		ID:             snap.ID,
		Username:       d.String(FieldUsername),
		AvatarURL:      d.String(FieldAvatarURL),
		FollowersCount: d.Int(FieldFollowersCount),
		FollowingCount: d.Int(FieldFollowingCount),
		CreatedAt:      d.Time(FieldCreatedAt),
		UpdatedAt:      d.Time(FieldUpdatedAt),
	}
}
