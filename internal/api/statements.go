package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/theirongolddev/household/internal/blob"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

const (
	maxStatementSize = 10 << 20 // 10 MB
	pdfContentType   = "application/pdf"
)

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	statements, err := s.cfg.Store.ListStatements(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Failed to list statements")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(statements))
}

// statementKey builds statements/{cycle}/{unixMillis}-{12 hex}-{filename}.
func (s *Server) statementKey(cycleID int64, filename string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("statements/%d/%d-%s-%s", cycleID, s.cfg.Now().UnixMilli(), suffix, filename)
}

// cleanFilename keeps the base name and drops characters that would split
// the object key.
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r == '/' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "statement.pdf"
	}
	return name
}

func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	if s.cfg.Bucket == nil {
		writeError(w, http.StatusServiceUnavailable, "Statement storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxStatementSize+(1<<20))
	if err := r.ParseMultipartForm(maxStatementSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File size too large. Maximum size is 10MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Missing required field: file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required field: file")
		return
	}
	defer func() { _ = file.Close() }()

	if ct := header.Header.Get("Content-Type"); ct != pdfContentType {
		writeError(w, http.StatusBadRequest, "Invalid file type. Only PDF files are allowed.")
		return
	}
	if header.Size > maxStatementSize {
		writeError(w, http.StatusBadRequest, "File size too large. Maximum size is 10MB.")
		return
	}

	var cardID *int64
	if v := strings.TrimSpace(r.FormValue("credit_card_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid credit card ID")
			return
		}
		cardID = &id
		if _, err := s.cfg.Store.GetCard(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Credit card not found")
				return
			}
			s.fail(w, r, err, "Failed to upload statement")
			return
		}
	}

	if _, err := s.cfg.Store.GetCycle(r.Context(), cycleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Billing cycle not found")
			return
		}
		s.fail(w, r, err, "Failed to upload statement")
		return
	}

	filename := cleanFilename(header.Filename)
	key := s.statementKey(cycleID, filename)
	if err := s.putStatement(r, key, file, header); err != nil {
		s.fail(w, r, err, "Failed to upload statement")
		return
	}

	st, err := s.cfg.Store.CreateStatement(r.Context(), model.Statement{
		BillingCycleID: cycleID,
		CreditCardID:   cardID,
		Filename:       filename,
		BlobKey:        key,
		SizeBytes:      header.Size,
	})
	if err != nil {
		if delErr := s.cfg.Bucket.Delete(r.Context(), key); delErr != nil {
			s.log.WithError(delErr).WithField("blob_key", key).Warn("orphaned statement blob")
		}
		s.fail(w, r, err, "Failed to save statement")
		return
	}

	s.Publish(EventStatementUploaded, userOf(r), map[string]any{
		"cycle_id":     cycleID,
		"statement_id": st.ID,
		"filename":     filename,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"filename":     filename,
		"blob_key":     key,
		"size":         header.Size,
		"statement_id": st.ID,
		"message":      fmt.Sprintf("Uploaded %s (%s)", filename, humanize.Bytes(uint64(header.Size))),
	})
}

func (s *Server) putStatement(r *http.Request, key string, file multipart.File, header *multipart.FileHeader) error {
	return s.cfg.Bucket.Put(r.Context(), key, file, header.Size, blob.Object{
		ContentType: pdfContentType,
		Metadata: map[string]string{
			"original-name": header.Filename,
			"uploaded-by":   userOf(r),
		},
	})
}

func (s *Server) statementFromPath(w http.ResponseWriter, r *http.Request) (model.Statement, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing or invalid statement id")
		return model.Statement{}, false
	}
	st, err := s.cfg.Store.GetStatement(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Statement not found")
		return st, false
	case err != nil:
		s.fail(w, r, err, "Failed to load statement")
		return st, false
	}
	return st, true
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	st, ok := s.statementFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	st, ok := s.statementFromPath(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteStatement(r.Context(), st.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Statement not found")
			return
		}
		s.fail(w, r, err, "Failed to delete statement")
		return
	}
	if s.cfg.Bucket != nil {
		if err := s.cfg.Bucket.Delete(r.Context(), st.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
			s.log.WithError(err).WithField("blob_key", st.BlobKey).Warn("deleting statement blob")
		}
	}
	s.Publish(EventStatementDeleted, userOf(r), map[string]any{"statement_id": st.ID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	st, ok := s.statementFromPath(w, r)
	if !ok {
		return
	}
	if s.cfg.Bucket == nil {
		writeError(w, http.StatusServiceUnavailable, "Statement storage is not configured")
		return
	}
	rc, _, err := s.cfg.Bucket.Get(r.Context(), st.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Statement file not found")
			return
		}
		s.fail(w, r, err, "Failed to load statement file")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", st.Filename))
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithError(err).WithField("blob_key", st.BlobKey).Warn("streaming statement")
	}
}

type parsedChargeRequest struct {
	Merchant              string          `json:"merchant"`
	Amount                json.RawMessage `json:"amount"`
	TransactionDate       string          `json:"transaction_date"`
	AllocatedTo           string          `json:"allocated_to"`
	IsForeignCurrency     bool            `json:"is_foreign_currency"`
	ForeignCurrencyAmount json.RawMessage `json:"foreign_currency_amount"`
	ForeignCurrencyType   string          `json:"foreign_currency_type"`
}

// toParsed validates one submitted charge. It returns a client-facing
// problem description, or "" when the charge is usable.
func (c parsedChargeRequest) toParsed(n int) (model.ParsedCharge, string) {
	out := model.ParsedCharge{
		Merchant:            strings.TrimSpace(c.Merchant),
		AllocatedTo:         strings.TrimSpace(c.AllocatedTo),
		IsForeignCurrency:   c.IsForeignCurrency,
		ForeignCurrencyType: strings.TrimSpace(c.ForeignCurrencyType),
	}
	if out.Merchant == "" {
		return out, fmt.Sprintf("Charge %d: merchant is required", n)
	}
	amount, ok := parseAmount(c.Amount)
	if !ok {
		return out, fmt.Sprintf("Charge %d: amount must be a valid number", n)
	}
	out.Amount = amount
	if d := strings.TrimSpace(c.TransactionDate); d != "" {
		date, err := model.ParseDate(d)
		if err != nil {
			return out, fmt.Sprintf("Charge %d: transaction_date must be YYYY-MM-DD", n)
		}
		out.TransactionDate = &date
	}
	if !isMissing(c.ForeignCurrencyAmount) {
		fx, ok := parseAmount(c.ForeignCurrencyAmount)
		if !ok {
			return out, fmt.Sprintf("Charge %d: foreign_currency_amount must be a valid number", n)
		}
		out.ForeignCurrencyAmount = &fx
	}
	return out, ""
}

func (s *Server) handleParseStatement(w http.ResponseWriter, r *http.Request) {
	st, ok := s.statementFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Charges       []parsedChargeRequest `json:"charges"`
		CreditCardID  *int64                `json:"credit_card_id"`
		StatementDate string                `json:"statement_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Charges == nil {
		writeError(w, http.StatusBadRequest, "Missing required field: charges")
		return
	}

	charges := make([]model.ParsedCharge, 0, len(req.Charges))
	for i, c := range req.Charges {
		pc, problem := c.toParsed(i + 1)
		if problem != "" {
			writeError(w, http.StatusBadRequest, problem)
			return
		}
		charges = append(charges, pc)
	}

	var stmtDate *model.Date
	if d := strings.TrimSpace(req.StatementDate); d != "" {
		date, err := model.ParseDate(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "statement_date must be YYYY-MM-DD")
			return
		}
		stmtDate = &date
	}

	ctx := r.Context()
	if req.CreditCardID != nil {
		if err := s.cfg.Store.UpdateStatementCard(ctx, st.ID, req.CreditCardID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Credit card not found")
				return
			}
			s.fail(w, r, err, "Failed to parse statement")
			return
		}
	}
	if stmtDate != nil {
		if err := s.cfg.Store.UpdateStatementDate(ctx, st.ID, stmtDate); err != nil {
			s.fail(w, r, err, "Failed to parse statement")
			return
		}
	}
	if err := s.cfg.Store.ReplaceStatementPayments(ctx, st.ID, charges); err != nil {
		if errors.Is(err, store.ErrInvalid) {
			writeError(w, http.StatusBadRequest, "Invalid charge data")
			return
		}
		s.fail(w, r, err, "Failed to parse statement")
		return
	}

	s.Publish(EventStatementParsed, userOf(r), map[string]any{
		"statement_id":  st.ID,
		"charges_found": len(charges),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "charges_found": len(charges)})
}
