package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/household/internal/model"
)

// DefaultOrderMaxAge is how long a cached order is served without refetching.
const DefaultOrderMaxAge = 7 * 24 * time.Hour

// GetCachedOrder returns a cached order updated within maxAge. Older or
// missing entries return ErrNotFound.
func (s *Store) GetCachedOrder(ctx context.Context, orderID string, maxAge time.Duration) (model.AmazonOrder, error) {
	var o model.AmazonOrder
	var date, total, status sql.NullString
	var items, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT order_id, order_date, total_amount, status, items, updated_at
		 FROM amazon_order WHERE order_id = ?`, orderID,
	).Scan(&o.OrderID, &date, &total, &status, &items, &updated)
	if err != nil {
		return o, notFound(err, "cached order", orderID)
	}

	o.UpdatedAt = parseTimestamp(updated)
	if maxAge > 0 && s.now().Sub(o.UpdatedAt) > maxAge {
		return model.AmazonOrder{}, fmt.Errorf("cached order %s is stale: %w", orderID, ErrNotFound)
	}

	o.OrderDate = date.String
	o.Status = status.String
	if total.Valid {
		o.TotalAmount = scanDecimal(total.String)
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return o, fmt.Errorf("decoding cached items for %s: %w", orderID, err)
	}
	return o, nil
}

// CacheOrder inserts or replaces a cached order.
func (s *Store) CacheOrder(ctx context.Context, o model.AmazonOrder) error {
	if o.OrderID == "" {
		return errors.New("cache order: empty order id")
	}
	items := o.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO amazon_order (order_id, order_date, total_amount, status, items, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(order_id) DO UPDATE SET
		   order_date = excluded.order_date,
		   total_amount = excluded.total_amount,
		   status = excluded.status,
		   items = excluded.items,
		   updated_at = excluded.updated_at`,
		o.OrderID, nullString(o.OrderDate), o.TotalAmount.String(), nullString(o.Status), string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("caching order: %w", err)
	}
	return nil
}

// PruneOrders drops cache entries last updated before cutoff and returns how
// many were removed.
func (s *Store) PruneOrders(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM amazon_order WHERE updated_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning orders: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
