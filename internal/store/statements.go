package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/theirongolddev/household/internal/model"
)

const statementSelect = `SELECT s.id, s.billing_cycle_id, s.credit_card_id,
	COALESCE(c.name, ''), COALESCE(c.last4, ''),
	s.filename, s.blob_key, s.size_bytes, s.statement_date, s.uploaded_at
	FROM statement s LEFT JOIN credit_card c ON c.id = s.credit_card_id`

func scanStatement(r rowScanner) (model.Statement, error) {
	var st model.Statement
	var card sql.NullInt64
	var date sql.NullString
	var uploaded string
	if err := r.Scan(&st.ID, &st.BillingCycleID, &card, &st.CreditCardName, &st.CreditCardLast4,
		&st.Filename, &st.BlobKey, &st.SizeBytes, &date, &uploaded); err != nil {
		return st, err
	}
	st.CreditCardID = scanNullInt64(card)
	st.StatementDate = scanDate(date)
	st.UploadedAt = parseTimestamp(uploaded)
	return st, nil
}

// ListStatements returns the statements of a cycle, newest upload first.
func (s *Store) ListStatements(ctx context.Context, cycleID int64) ([]model.Statement, error) {
	rows, err := s.db.QueryContext(ctx,
		statementSelect+" WHERE s.billing_cycle_id = ? ORDER BY s.uploaded_at DESC, s.id DESC", cycleID)
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetStatement returns one statement.
func (s *Store) GetStatement(ctx context.Context, id int64) (model.Statement, error) {
	st, err := scanStatement(s.db.QueryRowContext(ctx, statementSelect+" WHERE s.id = ?", id))
	if err != nil {
		return st, notFound(err, "statement", id)
	}
	return st, nil
}

// CreateStatement records an uploaded statement. The cycle must exist.
func (s *Store) CreateStatement(ctx context.Context, st model.Statement) (model.Statement, error) {
	if st.Filename == "" || st.BlobKey == "" {
		return st, fmt.Errorf("statement filename and blob key are required: %w", ErrInvalid)
	}
	if _, err := s.GetCycle(ctx, st.BillingCycleID); err != nil {
		return st, err
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO statement (billing_cycle_id, credit_card_id, filename, blob_key, size_bytes, statement_date, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.BillingCycleID, nullInt64(st.CreditCardID), st.Filename, st.BlobKey, st.SizeBytes,
		nullDate(st.StatementDate), now)
	if err != nil {
		return st, fmt.Errorf("creating statement: %w", err)
	}
	if st.ID, err = res.LastInsertId(); err != nil {
		return st, err
	}
	st.UploadedAt = parseTimestamp(now)
	return st, nil
}

// UpdateStatementCard sets or clears the card a statement belongs to.
func (s *Store) UpdateStatementCard(ctx context.Context, id int64, cardID *int64) error {
	if cardID != nil {
		if _, err := s.GetCard(ctx, *cardID); err != nil {
			return err
		}
	}
	res, err := s.db.ExecContext(ctx, "UPDATE statement SET credit_card_id = ? WHERE id = ?", nullInt64(cardID), id)
	if err != nil {
		return fmt.Errorf("updating statement card: %w", err)
	}
	return checkAffected(res, "statement", id)
}

// UpdateStatementDate sets or clears the statement date.
func (s *Store) UpdateStatementDate(ctx context.Context, id int64, date *model.Date) error {
	res, err := s.db.ExecContext(ctx, "UPDATE statement SET statement_date = ? WHERE id = ?", nullDate(date), id)
	if err != nil {
		return fmt.Errorf("updating statement date: %w", err)
	}
	return checkAffected(res, "statement", id)
}

// DeleteStatement removes a statement and its payments.
func (s *Store) DeleteStatement(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM statement WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting statement: %w", err)
	}
	return checkAffected(res, "statement", id)
}
