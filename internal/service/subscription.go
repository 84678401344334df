package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/id"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/validation"
)

// SubscriptionService persists subscription records. The payment gateway owns
// the lifecycle; this service only stores and transitions what it reports.
type SubscriptionService struct {
	store    *store.Store
	validate *validation.Validator
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService(s *store.Store, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:    s,
		validate: validation.New(),
		logger:   logger.OrDiscard(log),
		now:      time.Now,
	}
}

// CreateSubscriptionInput describes a subscription reported by the gateway.
type CreateSubscriptionInput struct {
	UserID    string                    `json:"user_id" validate:"required"`
	OrderID   string                    `json:"order_id" validate:"required"`
	Plan      string                    `json:"plan" validate:"required"`
	Status    domain.SubscriptionStatus `json:"status" validate:"required,oneof=pending active"`
	StartDate time.Time                 `json:"start_date" validate:"required"`
	EndDate   time.Time                 `json:"end_date" validate:"required,gtfield=StartDate"`
}

// Create stores a subscription. Returns Conflict if the order ID is taken.
//
// The subscription and a guard document keyed by the order ID are created in
// one batch, so two concurrent creations for the same order cannot both succeed.
func (s *SubscriptionService) Create(ctx context.Context, in CreateSubscriptionInput) (*domain.Subscription, error) {
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:        id.MustGenerate(id.PrefixSubscription),
		UserID:    in.UserID,
		OrderID:   in.OrderID,
		Plan:      in.Plan,
		Status:    in.Status,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	b := s.store.Batch()
	if err := b.Create(domain.CollectionSubscriptionOrders, sub.OrderID, store.Document{domain.FieldSubscriptionID: sub.ID}); err != nil {
		return nil, err
	}
	if err := b.Create(domain.CollectionSubscriptions, sub.ID, sub.ToDocument()); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflictf("subscription for order %s already exists", sub.OrderID)
		}
		return nil, err
	}

	s.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"order_id", sub.OrderID,
		"status", sub.Status,
	)
	return sub, nil
}

// GetByID returns a subscription.
func (s *SubscriptionService) GetByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	snap, err := s.store.Collection(domain.CollectionSubscriptions).Get(ctx, subscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription %s not found", subscriptionID)
	}
	return domain.SubscriptionFromSnapshot(snap), nil
}

// GetByOrderID returns the subscription created for a gateway order.
func (s *SubscriptionService) GetByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error) {
	guard, err := s.store.Collection(domain.CollectionSubscriptionOrders).Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "subscription for order %s not found", orderID)
	}
	return s.GetByID(ctx, guard.Data.String(domain.FieldSubscriptionID))
}

// GetByUserID returns the user's subscriptions, newest first.
func (s *SubscriptionService) GetByUserID(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	docs, err := s.store.Collection(domain.CollectionSubscriptions).Query().
		Where(domain.FieldUserID, store.OpEqual, userID).
		OrderBy(domain.FieldCreatedAt, store.Desc).
		Documents(ctx)
	if err != nil {
		return nil, err
	}
	return subscriptionsFrom(docs), nil
}

// UpdateStatus moves a subscription to status.
// Returns Conflict when the current status cannot transition to it.
func (s *SubscriptionService) UpdateStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	if !status.Valid() {
		return nil, domainerrors.Validationf("unknown subscription status %q", status)
	}

	var updated *domain.Subscription
	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		snap, err := tx.Get(domain.CollectionSubscriptions, subscriptionID)
		if err != nil {
			return notFound(err, "subscription %s not found", subscriptionID)
		}
		sub := domain.SubscriptionFromSnapshot(snap)
		if sub.Status == status {
			updated = sub
			return nil
		}
		if !sub.Status.CanTransitionTo(status) {
			return domainerrors.Conflictf("subscription %s cannot move from %s to %s", subscriptionID, sub.Status, status)
		}

		sub.Status = status
		sub.UpdatedAt = s.now()
		updated = sub
		return tx.Update(domain.CollectionSubscriptions, subscriptionID, store.Document{
			domain.FieldStatus:    string(status),
			domain.FieldUpdatedAt: sub.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription status updated", "subscription_id", subscriptionID, "status", status)
	return updated, nil
}

// HasActive reports whether the user holds a subscription that is active now.
func (s *SubscriptionService) HasActive(ctx context.Context, userID string) (bool, error) {
	docs, err := s.store.Collection(domain.CollectionSubscriptions).Query().
		Where(domain.FieldUserID, store.OpEqual, userID).
		Where(domain.FieldStatus, store.OpEqual, string(domain.SubscriptionActive)).
		Documents(ctx)
	if err != nil {
		return false, err
	}

	now := s.now()
	for _, doc := range docs {
		if domain.SubscriptionFromSnapshot(doc).IsActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

// ListExpired returns active subscriptions whose end date has passed.
func (s *SubscriptionService) ListExpired(ctx context.Context) ([]*domain.Subscription, error) {
	docs, err := s.store.Collection(domain.CollectionSubscriptions).Query().
		Where(domain.FieldStatus, store.OpEqual, string(domain.SubscriptionActive)).
		Where(domain.FieldEndDate, store.OpLessEqual, s.now()).
		OrderBy(domain.FieldEndDate, store.Asc).
		Documents(ctx)
	if err != nil {
		return nil, err
	}
	return subscriptionsFrom(docs), nil
}

// ExpireDue marks every active subscription past its end date as expired and
// returns how many were changed.
func (s *SubscriptionService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.ListExpired(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range due {
		if _, err := s.UpdateStatus(ctx, sub.ID, domain.SubscriptionExpired); err != nil {
			// Another writer may have cancelled it since the listing.
			if errors.Is(err, domainerrors.ErrConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("subscriptions expired", "count", expired)
	}
	return expired, nil
}

func subscriptionsFrom(docs []*store.Snapshot) []*domain.Subscription {
	subs := make([]*domain.Subscription, len(docs))
	for i, doc := range docs {
		subs[i] = domain.SubscriptionFromSnapshot(doc)
	}
	return subs
}
