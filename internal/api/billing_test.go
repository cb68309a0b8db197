package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orders"
)

const cc = "/projects/ccbilling"

func (e *testEnv) seedCycle(t *testing.T) model.BillingCycle {
	t.Helper()
	start, _ := model.ParseDate("2025-02-01")
	end, _ := model.ParseDate("2025-02-28")
	c, err := e.store.CreateCycle(context.Background(), start, end)
	require.NoError(t, err)
	return c
}

func (e *testEnv) seedStatement(t *testing.T, cycleID int64, charges ...model.ParsedCharge) model.Statement {
	t.Helper()
	ctx := context.Background()
	st, err := e.store.CreateStatement(ctx, model.Statement{
		BillingCycleID: cycleID, Filename: "feb.pdf", BlobKey: "statements/x/feb.pdf", SizeBytes: 10,
	})
	require.NoError(t, err)
	for _, c := range charges {
		_, err := e.store.CreatePayment(ctx, st.ID, c)
		require.NoError(t, err)
	}
	return st
}

func charge(merchant, amount string) model.ParsedCharge {
	return model.ParsedCharge{Merchant: merchant, Amount: decimal.RequireFromString(amount)}
}

func TestCardsAndCycles(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, cc+"/cards", map[string]string{"name": "Visa"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing name or last4", errorOf(t, rec))

	rec = e.do(t, http.MethodPost, cc+"/cards", map[string]string{"name": "Visa", "last4": "12a4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, cc+"/cards", map[string]string{"name": "Visa", "last4": "1234"})
	require.Equal(t, http.StatusCreated, rec.Code)
	card := decode[model.CreditCard](t, rec)

	rec = e.do(t, http.MethodPut, fmt.Sprintf("%s/cards/%d", cc, card.ID), map[string]string{"name": "Visa X", "last4": "9999"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, cc+"/cards/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, cc+"/cycles", map[string]string{"start_date": "2025-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing start_date or end_date", errorOf(t, rec))

	rec = e.do(t, http.MethodPost, cc+"/cycles", map[string]string{"start_date": "2025-02-01", "end_date": "2025-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, cc+"/cycles", map[string]string{"start_date": "2025-01-01", "end_date": "2025-01-31"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cycle := decode[model.BillingCycle](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("%s/cycles/%d/close", cc, cycle.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, cc+"/cycles", nil)
	cycles := decode[[]model.BillingCycle](t, rec)
	require.Len(t, cycles, 1)
	assert.True(t, cycles[0].Closed)

	rec = e.do(t, http.MethodDelete, cc+"/cycles/abc", nil)
	assert.Equal(t, "Invalid billing cycle ID", errorOf(t, rec))
	rec = e.do(t, http.MethodDelete, fmt.Sprintf("%s/cycles/%d", cc, cycle.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBudgets(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, cc+"/budgets", map[string]string{"name": "Groceries", "icon": "🛒"})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decode[model.Budget](t, rec)

	rec = e.do(t, http.MethodPost, cc+"/budgets", map[string]string{"name": "Groceries"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, cc+"/budgets/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Budget not found", errorOf(t, rec))

	path := fmt.Sprintf("%s/budgets/%d/merchants", cc, b.ID)
	rec = e.do(t, http.MethodPost, path, map[string]string{"merchant": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing merchant name", errorOf(t, rec))

	rec = e.do(t, http.MethodPost, path, map[string]string{"merchant": " Whole Foods "})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, http.MethodPost, path, map[string]string{"merchant": "Whole Foods"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, path, nil)
	merchants := decode[[]model.BudgetMerchant](t, rec)
	require.Len(t, merchants, 1)
	assert.Equal(t, "Whole Foods", merchants[0].Merchant)

	rec = e.do(t, http.MethodDelete, path, map[string]string{"merchant": "Whole Foods"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, cc+"/budgets/recent-merchants", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.do(t, http.MethodPut, fmt.Sprintf("%s/budgets/%d", cc, b.ID), map[string]string{"name": "Food"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, fmt.Sprintf("%s/budgets/%d", cc, b.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAutoAssociations(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.store.CreateBudget(context.Background(), "Coffee", "")
	require.NoError(t, err)

	rec := e.do(t, http.MethodPut, cc+"/auto-associations", map[string]string{"merchant": "Starbucks"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields: merchant and newBudgetName", errorOf(t, rec))

	rec = e.do(t, http.MethodPut, cc+"/auto-associations", map[string]string{"merchant": "Starbucks", "newBudgetName": "Tea"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Budget not found", errorOf(t, rec))

	rec = e.do(t, http.MethodPut, cc+"/auto-associations", map[string]string{"merchant": "Starbucks", "newBudgetName": "Coffee"})
	assert.Equal(t, http.StatusOK, rec.Code)

	events := e.srv.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAutoAssociationSet, events[0].Type)
	assert.Equal(t, "local", events[0].User)
}

func TestCycleChargesAssignAndRefresh(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cycle := e.seedCycle(t)
	e.seedStatement(t, cycle.ID, charge("STARBUCKS", "4.50"), charge("SHELL OIL", "40.00"))
	path := fmt.Sprintf("%s/cycles/%d/charges", cc, cycle.ID)

	rec := e.do(t, http.MethodGet, cc+"/cycles/x/charges", nil)
	assert.Equal(t, "Invalid billing cycle ID", errorOf(t, rec))

	rec = e.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Charges []model.Charge }](t, rec)
	require.Len(t, list.Charges, 2)

	rec = e.do(t, http.MethodPost, path, `{"assignments":"nope"}`)
	assert.Equal(t, "Invalid assignments data", errorOf(t, rec))
	_, err := e.store.CreateBudget(ctx, "Fuel", "")
	require.NoError(t, err)
	first := list.Charges[0].ID
	for _, tc := range []struct {
		name, body string
		code       int
		msg        string
	}{
		{"missing allocated_to", `{"assignments":[{"id":1}]}`, http.StatusBadRequest, "Each assignment must have id and allocated_to"},
		{"empty allocated_to", fmt.Sprintf(`{"assignments":[{"id":%d,"allocated_to":""}]}`, first), http.StatusBadRequest, "Each assignment must have id and allocated_to"},
		{"blank allocated_to", fmt.Sprintf(`{"assignments":[{"id":%d,"allocated_to":"  "}]}`, first), http.StatusBadRequest, "Each assignment must have id and allocated_to"},
		{"zero id", `{"assignments":[{"id":0,"allocated_to":"Fuel"}]}`, http.StatusBadRequest, "Each assignment must have id and allocated_to"},
		{"unknown budget", fmt.Sprintf(`{"assignments":[{"id":%d,"allocated_to":"NoSuchBudget"}]}`, first), http.StatusBadRequest, "allocated_to must be an existing budget name"},
		{"unknown charge", `{"assignments":[{"id":999,"allocated_to":"Fuel"}]}`, http.StatusNotFound, "Charge not found"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, path, tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.msg, errorOf(t, rec))
			got, err := e.store.GetPayment(ctx, first)
			require.NoError(t, err)
			assert.Empty(t, got.AllocatedTo, "nothing written")
		})
	}

	body := fmt.Sprintf(`{"assignments":[{"id":%d,"allocated_to":"Fuel"}]}`, list.Charges[1].ID)
	rec = e.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := e.store.GetPayment(ctx, list.Charges[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Fuel", got.AllocatedTo)

	b, err := e.store.CreateBudget(ctx, "Coffee", "")
	require.NoError(t, err)
	_, err = e.store.AddBudgetMerchant(ctx, b.ID, "STARBUCKS")
	require.NoError(t, err)

	rec = e.do(t, http.MethodPost, path, `{"refresh":"auto-associations"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"updated":1}`, rec.Body.String())

	types := []string{}
	for _, ev := range e.srv.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventChargesAssigned, EventAutoAssociations}, types)
}

func TestUpdateCharge(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cycle := e.seedCycle(t)
	e.seedStatement(t, cycle.ID, charge("TARGET 0042", "19.99"))
	charges, err := e.store.ListChargesForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	path := fmt.Sprintf("%s/charges/%d", cc, charges[0].ID)
	_, err = e.store.CreateBudget(ctx, "Household", "")
	require.NoError(t, err)

	for _, tc := range []struct {
		path, body string
		code       int
		msg        string
	}{
		{cc + "/charges/zero", `{}`, http.StatusBadRequest, "Invalid charge ID"},
		{cc + "/charges/999", `{}`, http.StatusNotFound, "Charge not found"},
		{path, `{"merchant":"Target","amount":"1"}`, http.StatusBadRequest, "Missing required fields: merchant, amount, allocated_to"},
		{path, `{"merchant":"Target","amount":"abc","allocated_to":"Household"}`, http.StatusBadRequest, "Amount must be a valid number"},
		{path, `{"merchant":"Target","amount":5,"allocated_to":"Nope"}`, http.StatusBadRequest, "allocated_to must be an existing budget name"},
	} {
		rec := e.do(t, http.MethodPut, tc.path, tc.body)
		assert.Equal(t, tc.code, rec.Code, tc.body)
		assert.Equal(t, tc.msg, errorOf(t, rec), tc.body)
	}

	rec := e.do(t, http.MethodPut, path, `{"merchant":"Target","amount":21.05,"allocated_to":"Household"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, path, nil)
	got := decode[struct{ Charge model.Charge }](t, rec)
	assert.Equal(t, "Household", got.Charge.AllocatedTo)
	assert.True(t, got.Charge.Amount.Equal(decimal.RequireFromString("21.05")))
}

func TestAmazonDetails(t *testing.T) {
	worker := httptest.NewServer(orders.NewServer(orders.ServerConfig{}).Handler())
	defer worker.Close()

	e := newTestEnv(t, func(c *Config) {
		c.Orders = orders.NewClient(worker.URL, orders.WithHTTPClient(worker.Client()))
	})
	ctx := context.Background()
	cycle := e.seedCycle(t)
	e.seedStatement(t, cycle.ID,
		charge("AMAZON MKTPLACE PMTS", "12.00"),
		charge("AMZN Mktp US*111-2222222-3333333", "49.99"))
	charges, err := e.store.ListChargesForCycle(ctx, cycle.ID)
	require.NoError(t, err)

	byMerchant := map[string]int64{}
	for _, c := range charges {
		byMerchant[c.Merchant] = c.ID
	}

	rec := e.do(t, http.MethodGet, fmt.Sprintf("%s/charges/%d/amazon-details", cc, byMerchant["AMAZON MKTPLACE PMTS"]), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No Amazon order ID found","merchant":"AMAZON MKTPLACE PMTS","is_amazon":true}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, fmt.Sprintf("%s/charges/%d/amazon-details", cc, byMerchant["AMZN Mktp US*111-2222222-3333333"]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Success    bool
		Order      model.AmazonOrder
		Categories map[string]any
	}](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "111-2222222-3333333", body.Order.OrderID)
	assert.Contains(t, body.Categories, "Miscellaneous")
}

func TestAmazonDetailsWorkerFailure(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer worker.Close()

	e := newTestEnv(t, func(c *Config) {
		c.Orders = orders.NewClient(worker.URL, orders.WithHTTPClient(worker.Client()))
	})
	cycle := e.seedCycle(t)
	e.seedStatement(t, cycle.ID, charge("AMAZON.COM 123-4567890-1234567", "5.00"))
	charges, err := e.store.ListChargesForCycle(context.Background(), cycle.ID)
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, fmt.Sprintf("%s/charges/%d/amazon-details", cc, charges[0].ID), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{
		"error": "Failed to fetch Amazon order details",
		"order_id": "123-4567890-1234567",
		"merchant": "AMAZON.COM 123-4567890-1234567"
	}`, rec.Body.String())
}

func TestAmazonDetailsServesCacheWithoutWorker(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cycle := e.seedCycle(t)
	e.seedStatement(t, cycle.ID,
		charge("AMAZON.COM 123-4567890-1234567", "5.00"),
		charge("AMZN Mktp US*111-2222222-3333333", "8.00"))
	charges, err := e.store.ListChargesForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	byMerchant := map[string]int64{}
	for _, c := range charges {
		byMerchant[c.Merchant] = c.ID
	}

	require.NoError(t, e.store.CacheOrder(ctx, model.AmazonOrder{
		OrderID:     "123-4567890-1234567",
		TotalAmount: decimal.RequireFromString("5.00"),
		Items:       []model.OrderItem{{Name: "USB cable", Price: decimal.RequireFromString("5.00"), Quantity: 1}},
	}))

	rec := e.do(t, http.MethodGet, fmt.Sprintf("%s/charges/%d/amazon-details", cc, byMerchant["AMAZON.COM 123-4567890-1234567"]), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Order model.AmazonOrder
	}](t, rec)
	assert.Equal(t, "123-4567890-1234567", body.Order.OrderID)
	require.Len(t, body.Order.Items, 1)
	assert.Equal(t, "USB cable", body.Order.Items[0].Name)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("%s/charges/%d/amazon-details", cc, byMerchant["AMZN Mktp US*111-2222222-3333333"]), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Amazon order lookup is not configured", errorOf(t, rec))
}

func uploadRequest(t *testing.T, path, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStatement(t *testing.T) {
	e := newTestEnv(t)
	cycle := e.seedCycle(t)
	path := fmt.Sprintf("%s/cycles/%d/statements", cc, cycle.ID)
	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(uploadRequest(t, path, "", "", "", nil))
	assert.Equal(t, "Missing required field: file", errorOf(t, rec))

	rec = serve(uploadRequest(t, path, "file", "notes.txt", "text/plain", []byte("hi")))
	assert.Equal(t, "Invalid file type. Only PDF files are allowed.", errorOf(t, rec))

	big := bytes.Repeat([]byte("a"), maxStatementSize+1)
	rec = serve(uploadRequest(t, path, "file", "big.pdf", "application/pdf", big))
	assert.Equal(t, "File size too large. Maximum size is 10MB.", errorOf(t, rec))

	pdf := []byte("%PDF-1.4 statement")
	rec = serve(uploadRequest(t, path, "file", "feb.pdf", "application/pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Success     bool   `json:"success"`
		Filename    string `json:"filename"`
		BlobKey     string `json:"blob_key"`
		Size        int64  `json:"size"`
		StatementID int64  `json:"statement_id"`
		Message     string `json:"message"`
	}](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(len(pdf)), resp.Size)
	assert.Regexp(t, regexp.MustCompile(fmt.Sprintf(`^statements/%d/%d-[0-9a-f]{12}-feb\.pdf$`, cycle.ID, testNow.UnixMilli())), resp.BlobKey)
	assert.Equal(t, "Uploaded feb.pdf (18 B)", resp.Message)

	rc, obj, err := e.bucket.Get(context.Background(), resp.BlobKey)
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pdf, stored)
	assert.Equal(t, "application/pdf", obj.ContentType)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("%s/statements/%d/pdf", cc, resp.StatementID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, pdf, rec.Body.Bytes())

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("%s/statements/%d", cc, resp.StatementID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, _, err = e.bucket.Get(context.Background(), resp.BlobKey)
	assert.Error(t, err)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("%s/statements/%d", cc, resp.StatementID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Statement not found", errorOf(t, rec))
	rec = e.do(t, http.MethodGet, cc+"/statements/-1", nil)
	assert.Equal(t, "Missing or invalid statement id", errorOf(t, rec))
}

func TestParseStatement(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cycle := e.seedCycle(t)
	st := e.seedStatement(t, cycle.ID, charge("OLD CHARGE", "1.00"))
	card, err := e.store.CreateCard(ctx, "Amex", "0005")
	require.NoError(t, err)
	path := fmt.Sprintf("%s/statements/%d/parse", cc, st.ID)

	rec := e.do(t, http.MethodPost, path, `{"charges":[{"merchant":"","amount":1}]}`)
	assert.Equal(t, "Charge 1: merchant is required", errorOf(t, rec))
	rec = e.do(t, http.MethodPost, path, `{"charges":[{"merchant":"A","amount":1},{"merchant":"B","amount":"x"}]}`)
	assert.Equal(t, "Charge 2: amount must be a valid number", errorOf(t, rec))

	body := fmt.Sprintf(`{
		"credit_card_id": %d,
		"statement_date": "2025-03-01",
		"charges": [
			{"merchant":"UBER TRIP","amount":"23.10","transaction_date":"2025-02-10"},
			{"merchant":"HOTEL PARIS","amount":120.5,"transaction_date":"2025-02-12",
			 "is_foreign_currency":true,"foreign_currency_amount":"110.00","foreign_currency_type":"EUR"}
		]}`, card.ID)
	rec = e.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"charges_found":2}`, rec.Body.String())

	charges, err := e.store.ListChargesForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "UBER TRIP", charges[0].Merchant)
	require.NotNil(t, charges[0].CreditCardID)
	assert.Equal(t, card.ID, *charges[0].CreditCardID)
	assert.True(t, charges[1].IsForeignCurrency)
	assert.Equal(t, "EUR", charges[1].ForeignCurrencyType)

	updated, err := e.store.GetStatement(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.StatementDate)
	assert.Equal(t, "2025-03-01", updated.StatementDate.String())
}

func TestNormalizeMerchants(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, cc+"/admin/normalize-merchants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"payments_updated":0,"budget_merchants_updated":0}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, cc+"/admin/normalize-merchants", `{"batchSize":10}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
