package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
)

func subscriptionInput(userID, orderID string, status domain.SubscriptionStatus, start time.Time, days int) CreateSubscriptionInput {
	return CreateSubscriptionInput{
		UserID:    userID,
		OrderID:   orderID,
		Plan:      "monthly",
		Status:    status,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
	}
}

func TestSubscriptionService_Create(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()

	sub, err := env.subs.Create(ctx, subscriptionInput("u1", "order-1", domain.SubscriptionPending, base, 30))
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)

	byOrder, err := env.subs.GetByOrderID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byOrder.ID)
	assert.Equal(t, domain.SubscriptionPending, byOrder.Status)
	assert.True(t, base.Equal(byOrder.StartDate))

	_, err = env.subs.Create(ctx, subscriptionInput("u2", "order-1", domain.SubscriptionActive, base, 30))
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	byUser, err := env.subs.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	_, err = env.subs.GetByOrderID(ctx, "order-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSubscriptionService_CreateValidation(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateSubscriptionInput
	}{
		{"missing user", subscriptionInput("", "o", domain.SubscriptionActive, base, 30)},
		{"missing order", subscriptionInput("u", "", domain.SubscriptionActive, base, 30)},
		{"terminal status", subscriptionInput("u", "o", domain.SubscriptionExpired, base, 30)},
		{"end before start", subscriptionInput("u", "o", domain.SubscriptionActive, base, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.subs.Create(ctx, tt.input)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
}

func TestSubscriptionService_UpdateStatus(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()

	sub, err := env.subs.Create(ctx, subscriptionInput("u1", "order-1", domain.SubscriptionPending, base, 30))
	require.NoError(t, err)

	updated, err := env.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionActive)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, updated.Status)

	// Repeating the current status is a no-op.
	_, err = env.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionActive)
	require.NoError(t, err)

	_, err = env.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionCancelled)
	require.NoError(t, err)

	_, err = env.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionActive)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = env.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatus("paused"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.subs.UpdateStatus(ctx, "sub-missing", domain.SubscriptionActive)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSubscriptionService_HasActiveAndExpire(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	now := base.AddDate(0, 0, 10)
	env.subs.now = func() time.Time { return now }

	current, err := env.subs.Create(ctx, subscriptionInput("u1", "order-1", domain.SubscriptionActive, base, 30))
	require.NoError(t, err)
	lapsed, err := env.subs.Create(ctx, subscriptionInput("u2", "order-2", domain.SubscriptionActive, base, 5))
	require.NoError(t, err)
	_, err = env.subs.Create(ctx, subscriptionInput("u3", "order-3", domain.SubscriptionPending, base, 5))
	require.NoError(t, err)

	active, err := env.subs.HasActive(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = env.subs.HasActive(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, active, "past its end date")

	expired, err := env.subs.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, lapsed.ID, expired[0].ID)

	n, err := env.subs.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.subs.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionExpired, got.Status)

	got, err = env.subs.GetByID(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, got.Status)

	n, err = env.subs.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
