package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/model"
)

func TestOrderCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	order := model.AmazonOrder{
		OrderID:     "123-4567890-1234567",
		OrderDate:   "2025-02-27",
		TotalAmount: dec("42.17"),
		Status:      "Delivered",
		Items: []model.OrderItem{
			{Name: "USB-C cable", Price: dec("9.99"), Quantity: 2},
		},
	}
	require.NoError(t, s.CacheOrder(ctx, order))

	got, err := s.GetCachedOrder(ctx, order.OrderID, DefaultOrderMaxAge)
	require.NoError(t, err)
	assert.Equal(t, "Delivered", got.Status)
	assert.True(t, got.TotalAmount.Equal(dec("42.17")))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, now, got.UpdatedAt)

	order.Status = "Returned"
	require.NoError(t, s.CacheOrder(ctx, order))
	got, err = s.GetCachedOrder(ctx, order.OrderID, 0)
	require.NoError(t, err)
	assert.Equal(t, "Returned", got.Status)

	now = now.Add(8 * 24 * time.Hour)
	_, err = s.GetCachedOrder(ctx, order.OrderID, DefaultOrderMaxAge)
	assert.ErrorIs(t, err, ErrNotFound, "stale entries miss")

	_, err = s.GetCachedOrder(ctx, "missing", DefaultOrderMaxAge)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.CacheOrder(ctx, model.AmazonOrder{OrderID: "old"}))
	s.now = func() time.Time { return base.Add(10 * 24 * time.Hour) }
	require.NoError(t, s.CacheOrder(ctx, model.AmazonOrder{OrderID: "new"}))

	n, err := s.PruneOrders(ctx, base.Add(5*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetCachedOrder(ctx, "new", 0)
	assert.NoError(t, err)
	_, err = s.GetCachedOrder(ctx, "old", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.CacheOrder(ctx, model.AmazonOrder{}))
}
