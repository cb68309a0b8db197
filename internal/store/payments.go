package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/merchant"
	"github.com/theirongolddev/household/internal/model"
)

const paymentColumns = `p.id, p.statement_id, p.merchant, p.merchant_normalized, p.merchant_details,
	p.amount, p.allocated_to, p.transaction_date, p.is_foreign_currency,
	p.foreign_currency_amount, p.foreign_currency_type, p.created_at`

const chargeSelect = `SELECT ` + paymentColumns + `, s.credit_card_id, COALESCE(c.name, ''), COALESCE(c.last4, '')
	FROM payment p
	JOIN statement s ON s.id = p.statement_id
	LEFT JOIN credit_card c ON c.id = s.credit_card_id`

func scanCharge(r rowScanner) (model.Charge, error) {
	var ch model.Charge
	var amount, created string
	var allocated, txDate, fxAmount, fxType sql.NullString
	var foreign int
	var card sql.NullInt64
	if err := r.Scan(&ch.ID, &ch.StatementID, &ch.Merchant, &ch.MerchantNormalized, &ch.MerchantDetails,
		&amount, &allocated, &txDate, &foreign, &fxAmount, &fxType, &created,
		&card, &ch.CardName, &ch.Last4); err != nil {
		return ch, err
	}
	ch.Amount = scanDecimal(amount)
	ch.AllocatedTo = allocated.String
	ch.TransactionDate = scanDate(txDate)
	ch.IsForeignCurrency = foreign != 0
	ch.ForeignCurrencyAmount = scanNullDecimal(fxAmount)
	ch.ForeignCurrencyType = fxType.String
	ch.CreatedAt = parseTimestamp(created)
	ch.CreditCardID = scanNullInt64(card)
	return ch, nil
}

// ListChargesForCycle returns every payment on the cycle's statements with
// its card, ordered by transaction date.
func (s *Store) ListChargesForCycle(ctx context.Context, cycleID int64) ([]model.Charge, error) {
	rows, err := s.db.QueryContext(ctx,
		chargeSelect+` WHERE s.billing_cycle_id = ?
		ORDER BY p.transaction_date IS NULL, p.transaction_date ASC, p.id ASC`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("listing charges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Charge
	for rows.Next() {
		ch, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// GetPayment returns one payment with its card.
func (s *Store) GetPayment(ctx context.Context, id int64) (model.Charge, error) {
	ch, err := scanCharge(s.db.QueryRowContext(ctx, chargeSelect+" WHERE p.id = ?", id))
	if err != nil {
		return ch, notFound(err, "charge", id)
	}
	return ch, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkParsed(c model.ParsedCharge) error {
	if strings.TrimSpace(c.Merchant) == "" {
		return fmt.Errorf("charge merchant is required: %w", ErrInvalid)
	}
	if c.IsForeignCurrency && c.ForeignCurrencyType == "" && c.ForeignCurrencyAmount != nil {
		return fmt.Errorf("foreign currency type is required with a foreign amount: %w", ErrInvalid)
	}
	return nil
}

// insertPayment normalizes the merchant and fills in the allocation from the
// merchant's budget association when none is given.
func (s *Store) insertPayment(ctx context.Context, q execer, statementID int64, c model.ParsedCharge) (int64, error) {
	if err := checkParsed(c); err != nil {
		return 0, err
	}
	norm := merchant.Normalize(c.Merchant)

	allocated := strings.TrimSpace(c.AllocatedTo)
	if allocated == "" {
		err := q.QueryRowContext(ctx,
			`SELECT b.name FROM budget b JOIN budget_merchant bm ON bm.budget_id = b.id
			 WHERE bm.merchant_normalized = ? ORDER BY bm.id ASC LIMIT 1`, norm.Normalized).Scan(&allocated)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("looking up association: %w", err)
		}
	}

	var fxType sql.NullString
	if c.IsForeignCurrency {
		fxType = nullString(c.ForeignCurrencyType)
	}
	foreign := 0
	if c.IsForeignCurrency {
		foreign = 1
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO payment (statement_id, merchant, merchant_normalized, merchant_details, amount,
		 allocated_to, transaction_date, is_foreign_currency, foreign_currency_amount, foreign_currency_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		statementID, strings.TrimSpace(c.Merchant), norm.Normalized, norm.Details, c.Amount.String(),
		nullString(allocated), nullDate(c.TransactionDate), foreign, nullDecimal(c.ForeignCurrencyAmount),
		fxType, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("creating payment: %w", err)
	}
	return res.LastInsertId()
}

// CreatePayment adds one payment to a statement.
func (s *Store) CreatePayment(ctx context.Context, statementID int64, c model.ParsedCharge) (model.Charge, error) {
	if _, err := s.GetStatement(ctx, statementID); err != nil {
		return model.Charge{}, err
	}
	id, err := s.insertPayment(ctx, s.db, statementID, c)
	if err != nil {
		return model.Charge{}, err
	}
	return s.GetPayment(ctx, id)
}

// UpdatePayment edits a payment's merchant, amount and allocation. The
// merchant is normalized again.
func (s *Store) UpdatePayment(ctx context.Context, id int64, name string, amount decimal.Decimal, allocatedTo string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("merchant is required: %w", ErrInvalid)
	}
	norm := merchant.Normalize(name)
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment SET merchant = ?, merchant_normalized = ?, merchant_details = ?, amount = ?, allocated_to = ?
		 WHERE id = ?`,
		name, norm.Normalized, norm.Details, amount.String(), nullString(strings.TrimSpace(allocatedTo)), id)
	if err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}
	return checkAffected(res, "charge", id)
}

// BulkAssign sets allocations for many payments at once. An empty
// AllocatedTo clears the allocation. Nothing is written if any id is
// unknown.
func (s *Store) BulkAssign(ctx context.Context, assignments []model.Assignment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return assignPayments(ctx, tx, assignments)
	})
}

// AssignToBudgets is BulkAssign restricted to existing budget names. Every
// name is checked in the same transaction as the writes; an empty or unknown
// name fails with ErrInvalid and nothing is written.
func (s *Store) AssignToBudgets(ctx context.Context, assignments []model.Assignment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		checked := make(map[string]bool, len(assignments))
		for _, a := range assignments {
			name := strings.TrimSpace(a.AllocatedTo)
			if name == "" {
				return fmt.Errorf("charge %d: budget name is required: %w", a.ID, ErrInvalid)
			}
			if checked[name] {
				continue
			}
			var one int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM budget WHERE name = ?", name).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("budget %q does not exist: %w", name, ErrInvalid)
			}
			if err != nil {
				return fmt.Errorf("looking up budget %q: %w", name, err)
			}
			checked[name] = true
		}
		return assignPayments(ctx, tx, assignments)
	})
}

func assignPayments(ctx context.Context, tx *sql.Tx, assignments []model.Assignment) error {
	for _, a := range assignments {
		res, err := tx.ExecContext(ctx,
			"UPDATE payment SET allocated_to = ? WHERE id = ?", nullString(strings.TrimSpace(a.AllocatedTo)), a.ID)
		if err != nil {
			return fmt.Errorf("assigning charge %d: %w", a.ID, err)
		}
		if err := checkAffected(res, "charge", a.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeletePaymentsForStatement removes every payment of a statement and
// returns how many were removed.
func (s *Store) DeletePaymentsForStatement(ctx context.Context, statementID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM payment WHERE statement_id = ?", statementID)
	if err != nil {
		return 0, fmt.Errorf("deleting payments: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReplaceStatementPayments swaps a statement's payments for charges in one
// transaction.
func (s *Store) ReplaceStatementPayments(ctx context.Context, statementID int64, charges []model.ParsedCharge) error {
	for i, c := range charges {
		if err := checkParsed(c); err != nil {
			return fmt.Errorf("charge %d: %w", i, err)
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM statement WHERE id = ?", statementID).Scan(&exists); err != nil {
			return notFound(err, "statement", statementID)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM payment WHERE statement_id = ?", statementID); err != nil {
			return fmt.Errorf("clearing payments: %w", err)
		}
		for i, c := range charges {
			if _, err := s.insertPayment(ctx, tx, statementID, c); err != nil {
				return fmt.Errorf("charge %d: %w", i, err)
			}
		}
		return nil
	})
}

// RefreshAutoAssociations reallocates every payment in the cycle whose
// normalized merchant has a budget association and whose allocation differs
// from that budget. It returns the number of payments changed.
func (s *Store) RefreshAutoAssociations(ctx context.Context, cycleID int64) (int, error) {
	if _, err := s.GetCycle(ctx, cycleID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment SET allocated_to = (
		     SELECT b.name FROM budget b JOIN budget_merchant bm ON bm.budget_id = b.id
		     WHERE bm.merchant_normalized = payment.merchant_normalized
		     ORDER BY bm.id ASC LIMIT 1)
		 WHERE statement_id IN (SELECT id FROM statement WHERE billing_cycle_id = ?)
		   AND merchant_normalized IN (SELECT merchant_normalized FROM budget_merchant)
		   AND COALESCE(allocated_to, '') <> (
		     SELECT b.name FROM budget b JOIN budget_merchant bm ON bm.budget_id = b.id
		     WHERE bm.merchant_normalized = payment.merchant_normalized
		     ORDER BY bm.id ASC LIMIT 1)`, cycleID)
	if err != nil {
		return 0, fmt.Errorf("refreshing auto-associations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RenormalizeResult counts rows whose stored normalization changed.
type RenormalizeResult struct {
	Payments        int `json:"payments_updated"`
	BudgetMerchants int `json:"budget_merchants_updated"`
}

// RenormalizeMerchants recomputes normalized merchants for payments and
// budget merchants, writing only rows whose stored value differs. Rows are
// read and written in batches of batchSize.
func (s *Store) RenormalizeMerchants(ctx context.Context, batchSize int) (RenormalizeResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var out RenormalizeResult

	var lastID int64
	for {
		type row struct {
			id            int64
			raw, norm, dt string
		}
		var batch []row
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, merchant, merchant_normalized, merchant_details FROM payment
			 WHERE id > ? ORDER BY id ASC LIMIT ?`, lastID, batchSize)
		if err != nil {
			return out, fmt.Errorf("reading payments: %w", err)
		}
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.raw, &r.norm, &r.dt); err != nil {
				_ = rows.Close()
				return out, err
			}
			batch = append(batch, r)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return out, err
		}
		if len(batch) == 0 {
			break
		}

		err = s.inTx(ctx, func(tx *sql.Tx) error {
			for _, r := range batch {
				n := merchant.Normalize(r.raw)
				if n.Normalized == r.norm && n.Details == r.dt {
					continue
				}
				if _, err := tx.ExecContext(ctx,
					"UPDATE payment SET merchant_normalized = ?, merchant_details = ? WHERE id = ?",
					n.Normalized, n.Details, r.id); err != nil {
					return err
				}
				out.Payments++
			}
			return nil
		})
		if err != nil {
			return out, fmt.Errorf("renormalizing payments: %w", err)
		}
		lastID = batch[len(batch)-1].id
	}

	type bmRow struct {
		id        int64
		raw, norm string
	}
	var merchants []bmRow
	rows, err := s.db.QueryContext(ctx, "SELECT id, merchant, merchant_normalized FROM budget_merchant ORDER BY id ASC")
	if err != nil {
		return out, fmt.Errorf("reading budget merchants: %w", err)
	}
	for rows.Next() {
		var r bmRow
		if err := rows.Scan(&r.id, &r.raw, &r.norm); err != nil {
			_ = rows.Close()
			return out, err
		}
		merchants = append(merchants, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range merchants {
			n := merchant.Normalize(r.raw).Normalized
			if n == r.norm {
				continue
			}
			// Two raw names can collapse to one normalized merchant on the
			// same budget; the later row is dropped.
			if _, err := tx.ExecContext(ctx,
				"UPDATE OR IGNORE budget_merchant SET merchant_normalized = ? WHERE id = ?", n, r.id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM budget_merchant WHERE id = ? AND merchant_normalized <> ?", r.id, n); err != nil {
				return err
			}
			out.BudgetMerchants++
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("renormalizing budget merchants: %w", err)
	}
	return out, nil
}
