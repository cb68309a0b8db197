package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/household/internal/model"
)

// ValidLast4 reports whether s is exactly four digits.
func ValidLast4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func checkCard(name, last4 string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("card name is required: %w", ErrInvalid)
	}
	if !ValidLast4(last4) {
		return fmt.Errorf("last4 %q must be four digits: %w", last4, ErrInvalid)
	}
	return nil
}

// ListCards returns every card, newest first.
func (s *Store) ListCards(ctx context.Context) ([]model.CreditCard, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, last4, created_at FROM credit_card ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CreditCard
	for rows.Next() {
		var c model.CreditCard
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Last4, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTimestamp(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCard returns one card.
func (s *Store) GetCard(ctx context.Context, id int64) (model.CreditCard, error) {
	var c model.CreditCard
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, last4, created_at FROM credit_card WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Last4, &created)
	if err != nil {
		return c, notFound(err, "card", id)
	}
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

// CreateCard adds a card.
func (s *Store) CreateCard(ctx context.Context, name, last4 string) (model.CreditCard, error) {
	name = strings.TrimSpace(name)
	if err := checkCard(name, last4); err != nil {
		return model.CreditCard{}, err
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO credit_card (name, last4, created_at) VALUES (?, ?, ?)", name, last4, now)
	if err != nil {
		return model.CreditCard{}, fmt.Errorf("creating card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.CreditCard{}, err
	}
	return model.CreditCard{ID: id, Name: name, Last4: last4, CreatedAt: parseTimestamp(now)}, nil
}

// UpdateCard renames a card or changes its last four digits.
func (s *Store) UpdateCard(ctx context.Context, id int64, name, last4 string) error {
	name = strings.TrimSpace(name)
	if err := checkCard(name, last4); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE credit_card SET name = ?, last4 = ? WHERE id = ?", name, last4, id)
	if err != nil {
		return fmt.Errorf("updating card: %w", err)
	}
	return checkAffected(res, "card", id)
}

// DeleteCard removes a card. Statements keep their rows with no card.
func (s *Store) DeleteCard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM credit_card WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting card: %w", err)
	}
	return checkAffected(res, "card", id)
}
