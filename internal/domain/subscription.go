package domain

import (
	"time"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

// SubscriptionStatus is the lifecycle state owned by the payment gateway.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Valid checks if the status is known.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionPending, SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the gateway may move a subscription from s to next.
// Expired and cancelled are terminal.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	switch s {
	case SubscriptionPending:
		return next == SubscriptionActive || next == SubscriptionCancelled || next == SubscriptionExpired
	case SubscriptionActive:
		return next == SubscriptionExpired || next == SubscriptionCancelled
	default:
		return false
	}
}

// Subscription is a persisted subscription record keyed by order and user.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	OrderID   string             `json:"order_id"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActiveAt reports whether the subscription grants access at t.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	return s.Status == SubscriptionActive && !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// ToDocument renders the subscription's stored fields.
func (s *Subscription) ToDocument() store.Document {
	return store.Document{
		FieldUserID:    s.UserID,
		FieldOrderID:   s.OrderID,
		FieldPlan:      s.Plan,
		FieldStatus:    string(s.Status),
		FieldStartDate: s.StartDate,
		FieldEndDate:   s.EndDate,
		FieldCreatedAt: s.CreatedAt,
		FieldUpdatedAt: s.UpdatedAt,
	}
}

// SubscriptionFromSnapshot decodes a stored subscription.
func SubscriptionFromSnapshot(snap *store.Snapshot) *Subscription {
	d := snap.Data
	return &Subscription{
		ID:        snap.ID,
		UserID:    d.String(FieldUserID),
		OrderID:   d.String(FieldOrderID),
		Plan:      d.String(FieldPlan),
		Status:    SubscriptionStatus(d.String(FieldStatus)),
		StartDate: d.Time(FieldStartDate),
		EndDate:   d.Time(FieldEndDate),
		CreatedAt: d.Time(FieldCreatedAt),
		UpdatedAt: d.Time(FieldUpdatedAt),
	}
}
