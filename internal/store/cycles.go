package store

import (
	"context"
	"fmt"

	"github.com/theirongolddev/household/internal/model"
)

const cycleColumns = "id, start_date, end_date, closed, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(r rowScanner) (model.BillingCycle, error) {
	var c model.BillingCycle
	var start, end, created string
	var closed int
	if err := r.Scan(&c.ID, &start, &end, &closed, &created); err != nil {
		return c, err
	}
	var err error
	if c.StartDate, err = model.ParseDate(start); err != nil {
		return c, err
	}
	if c.EndDate, err = model.ParseDate(end); err != nil {
		return c, err
	}
	c.Closed = closed != 0
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

// ListCycles returns every billing cycle, most recent start first.
func (s *Store) ListCycles(ctx context.Context) ([]model.BillingCycle, error) {
	return s.queryCycles(ctx, "SELECT "+cycleColumns+" FROM billing_cycle ORDER BY start_date DESC, id DESC")
}

// ListOpenCycles returns cycles that have not been closed.
func (s *Store) ListOpenCycles(ctx context.Context) ([]model.BillingCycle, error) {
	return s.queryCycles(ctx, "SELECT "+cycleColumns+" FROM billing_cycle WHERE closed = 0 ORDER BY start_date DESC, id DESC")
}

func (s *Store) queryCycles(ctx context.Context, query string) ([]model.BillingCycle, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BillingCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCycle returns one billing cycle.
func (s *Store) GetCycle(ctx context.Context, id int64) (model.BillingCycle, error) {
	c, err := scanCycle(s.db.QueryRowContext(ctx, "SELECT "+cycleColumns+" FROM billing_cycle WHERE id = ?", id))
	if err != nil {
		return c, notFound(err, "billing cycle", id)
	}
	return c, nil
}

// CreateCycle adds an open billing cycle. end must not precede start.
func (s *Store) CreateCycle(ctx context.Context, start, end model.Date) (model.BillingCycle, error) {
	if start.IsZero() || end.IsZero() {
		return model.BillingCycle{}, fmt.Errorf("start and end dates are required: %w", ErrInvalid)
	}
	if end.Before(start.Time) {
		return model.BillingCycle{}, fmt.Errorf("end %s before start %s: %w", end, start, ErrInvalid)
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO billing_cycle (start_date, end_date, closed, created_at) VALUES (?, ?, 0, ?)",
		start.String(), end.String(), now)
	if err != nil {
		return model.BillingCycle{}, fmt.Errorf("creating cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.BillingCycle{}, err
	}
	return model.BillingCycle{ID: id, StartDate: start, EndDate: end, CreatedAt: parseTimestamp(now)}, nil
}

// CloseCycle marks a cycle closed.
func (s *Store) CloseCycle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE billing_cycle SET closed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("closing cycle: %w", err)
	}
	return checkAffected(res, "billing cycle", id)
}

// DeleteCycle removes a cycle with its statements and payments.
func (s *Store) DeleteCycle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM billing_cycle WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting cycle: %w", err)
	}
	return checkAffected(res, "billing cycle", id)
}
