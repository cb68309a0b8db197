package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/household/internal/merchant"
	"github.com/theirongolddev/household/internal/model"
)

const budgetColumns = "id, name, COALESCE(icon, ''), created_at"

func scanBudget(r rowScanner) (model.Budget, error) {
	var b model.Budget
	var created string
	if err := r.Scan(&b.ID, &b.Name, &b.Icon, &created); err != nil {
		return b, err
	}
	b.CreatedAt = parseTimestamp(created)
	return b, nil
}

// ListBudgets returns every budget by name.
func (s *Store) ListBudgets(ctx context.Context) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budget ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBudget returns one budget.
func (s *Store) GetBudget(ctx context.Context, id int64) (model.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budget WHERE id = ?", id))
	if err != nil {
		return b, notFound(err, "budget", id)
	}
	return b, nil
}

// GetBudgetByName returns the budget with an exact name.
func (s *Store) GetBudgetByName(ctx context.Context, name string) (model.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budget WHERE name = ?", name))
	if err != nil {
		return b, notFound(err, "budget", name)
	}
	return b, nil
}

// CreateBudget adds a budget. Names are unique.
func (s *Store) CreateBudget(ctx context.Context, name, icon string) (model.Budget, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Budget{}, fmt.Errorf("budget name is required: %w", ErrInvalid)
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO budget (name, icon, created_at) VALUES (?, ?, ?)", name, nullString(icon), now)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Budget{}, fmt.Errorf("budget %q: %w", name, ErrDuplicate)
		}
		return model.Budget{}, fmt.Errorf("creating budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Budget{}, err
	}
	return model.Budget{ID: id, Name: name, Icon: icon, CreatedAt: parseTimestamp(now)}, nil
}

// UpdateBudget renames a budget and sets its icon. Payments allocated to the
// old name follow the rename.
func (s *Store) UpdateBudget(ctx context.Context, id int64, name, icon string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("budget name is required: %w", ErrInvalid)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var old string
		if err := tx.QueryRowContext(ctx, "SELECT name FROM budget WHERE id = ?", id).Scan(&old); err != nil {
			return notFound(err, "budget", id)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE budget SET name = ?, icon = ? WHERE id = ?", name, nullString(icon), id); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("budget %q: %w", name, ErrDuplicate)
			}
			return fmt.Errorf("updating budget: %w", err)
		}
		if old != name {
			if _, err := tx.ExecContext(ctx,
				"UPDATE payment SET allocated_to = ? WHERE allocated_to = ?", name, old); err != nil {
				return fmt.Errorf("moving allocations: %w", err)
			}
		}
		return nil
	})
}

// DeleteBudget removes a budget and its merchant associations.
func (s *Store) DeleteBudget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM budget WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting budget: %w", err)
	}
	return checkAffected(res, "budget", id)
}

// ListBudgetMerchants returns the merchants associated with a budget.
func (s *Store) ListBudgetMerchants(ctx context.Context, budgetID int64) ([]model.BudgetMerchant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, budget_id, merchant, merchant_normalized FROM budget_merchant
		 WHERE budget_id = ? ORDER BY merchant_normalized ASC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("listing budget merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BudgetMerchant
	for rows.Next() {
		var m model.BudgetMerchant
		if err := rows.Scan(&m.ID, &m.BudgetID, &m.Merchant, &m.MerchantNormalized); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddBudgetMerchant associates a merchant with a budget. The raw name is
// kept for display; matching uses the normalized form.
func (s *Store) AddBudgetMerchant(ctx context.Context, budgetID int64, name string) (model.BudgetMerchant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.BudgetMerchant{}, fmt.Errorf("merchant name is required: %w", ErrInvalid)
	}
	if _, err := s.GetBudget(ctx, budgetID); err != nil {
		return model.BudgetMerchant{}, err
	}
	norm := merchant.Normalize(name).Normalized
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO budget_merchant (budget_id, merchant, merchant_normalized) VALUES (?, ?, ?)",
		budgetID, name, norm)
	if err != nil {
		if isUniqueViolation(err) {
			return model.BudgetMerchant{}, fmt.Errorf("merchant %q on budget %d: %w", norm, budgetID, ErrDuplicate)
		}
		return model.BudgetMerchant{}, fmt.Errorf("adding budget merchant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.BudgetMerchant{}, err
	}
	return model.BudgetMerchant{ID: id, BudgetID: budgetID, Merchant: name, MerchantNormalized: norm}, nil
}

// RemoveBudgetMerchant drops a merchant association. The merchant is
// matched by its normalized form.
func (s *Store) RemoveBudgetMerchant(ctx context.Context, budgetID int64, name string) error {
	norm := merchant.Normalize(name).Normalized
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM budget_merchant WHERE budget_id = ? AND merchant_normalized = ?", budgetID, norm)
	if err != nil {
		return fmt.Errorf("removing budget merchant: %w", err)
	}
	return checkAffected(res, "budget merchant", norm)
}

// GetBudgetByMerchant returns the budget a merchant is associated with.
func (s *Store) GetBudgetByMerchant(ctx context.Context, name string) (model.Budget, error) {
	norm := merchant.Normalize(name).Normalized
	b, err := scanBudget(s.db.QueryRowContext(ctx,
		`SELECT b.id, b.name, COALESCE(b.icon, ''), b.created_at
		 FROM budget b JOIN budget_merchant bm ON bm.budget_id = b.id
		 WHERE bm.merchant_normalized = ?
		 ORDER BY bm.id ASC LIMIT 1`, norm))
	if err != nil {
		return b, notFound(err, "budget for merchant", norm)
	}
	return b, nil
}

// SetAutoAssociation moves a merchant to budgetName, replacing any existing
// association.
func (s *Store) SetAutoAssociation(ctx context.Context, name, budgetName string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("merchant name is required: %w", ErrInvalid)
	}
	norm := merchant.Normalize(name).Normalized
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var budgetID int64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM budget WHERE name = ?", budgetName).Scan(&budgetID); err != nil {
			return notFound(err, "budget", budgetName)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM budget_merchant WHERE merchant_normalized = ?", norm); err != nil {
			return fmt.Errorf("clearing association: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO budget_merchant (budget_id, merchant, merchant_normalized) VALUES (?, ?, ?)",
			budgetID, name, norm); err != nil {
			return fmt.Errorf("adding association: %w", err)
		}
		return nil
	})
}

// RecentUnassignedMerchants returns normalized merchants seen on payments
// created since the given time that no budget is associated with. Most
// frequent first.
func (s *Store) RecentUnassignedMerchants(ctx context.Context, limit int, since time.Time) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.merchant_normalized, COUNT(*) AS n
		 FROM payment p
		 WHERE p.created_at >= ?
		   AND p.merchant_normalized NOT IN (SELECT merchant_normalized FROM budget_merchant)
		 GROUP BY p.merchant_normalized
		 ORDER BY n DESC, p.merchant_normalized ASC
		 LIMIT ?`, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var m string
		var n int
		if err := rows.Scan(&m, &n); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
