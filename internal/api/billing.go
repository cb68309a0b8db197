package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

const recentMerchantWindow = 30 * 24 * time.Hour

func (s *Server) routeBilling(r *mux.Router) {
	r.HandleFunc("/cards", s.handleListCards).Methods(http.MethodGet)
	r.HandleFunc("/cards", s.handleCreateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{id}", s.handleUpdateCard).Methods(http.MethodPut)
	r.HandleFunc("/cards/{id}", s.handleDeleteCard).Methods(http.MethodDelete)

	r.HandleFunc("/cycles", s.handleListCycles).Methods(http.MethodGet)
	r.HandleFunc("/cycles", s.handleCreateCycle).Methods(http.MethodPost)
	r.HandleFunc("/cycles/{id}", s.handleDeleteCycle).Methods(http.MethodDelete)
	r.HandleFunc("/cycles/{id}/close", s.handleCloseCycle).Methods(http.MethodPost)
	r.HandleFunc("/cycles/{id}/charges", s.handleListCycleCharges).Methods(http.MethodGet)
	r.HandleFunc("/cycles/{id}/charges", s.handleCycleChargesAction).Methods(http.MethodPost)
	r.HandleFunc("/cycles/{id}/statements", s.handleListStatements).Methods(http.MethodGet)
	r.HandleFunc("/cycles/{id}/statements", s.handleUploadStatement).Methods(http.MethodPost)

	r.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	r.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	r.HandleFunc("/budgets/recent-merchants", s.handleRecentMerchants).Methods(http.MethodGet)
	r.HandleFunc("/budgets/{id}", s.handleGetBudget).Methods(http.MethodGet)
	r.HandleFunc("/budgets/{id}", s.handleUpdateBudget).Methods(http.MethodPut)
	r.HandleFunc("/budgets/{id}", s.handleDeleteBudget).Methods(http.MethodDelete)
	r.HandleFunc("/budgets/{id}/merchants", s.handleListBudgetMerchants).Methods(http.MethodGet)
	r.HandleFunc("/budgets/{id}/merchants", s.handleAddBudgetMerchant).Methods(http.MethodPost)
	r.HandleFunc("/budgets/{id}/merchants", s.handleRemoveBudgetMerchant).Methods(http.MethodDelete)
	r.HandleFunc("/auto-associations", s.handleSetAutoAssociation).Methods(http.MethodPut)

	r.HandleFunc("/statements/{id}", s.handleGetStatement).Methods(http.MethodGet)
	r.HandleFunc("/statements/{id}", s.handleDeleteStatement).Methods(http.MethodDelete)
	r.HandleFunc("/statements/{id}/pdf", s.handleStatementPDF).Methods(http.MethodGet)
	r.HandleFunc("/statements/{id}/parse", s.handleParseStatement).Methods(http.MethodPost)

	r.HandleFunc("/charges/{id}", s.handleGetCharge).Methods(http.MethodGet)
	r.HandleFunc("/charges/{id}", s.handleUpdateCharge).Methods(http.MethodPut)
	r.HandleFunc("/charges/{id}/amazon-details", s.handleAmazonDetails).Methods(http.MethodGet)

	r.HandleFunc("/admin/normalize-merchants", s.handleNormalizeMerchants).Methods(http.MethodPost)
}

// Cards

type cardRequest struct {
	Name  string `json:"name"`
	Last4 string `json:"last4"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cfg.Store.ListCards(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to list credit cards")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cards))
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Last4) == "" {
		writeError(w, http.StatusBadRequest, "Missing name or last4")
		return
	}
	card, err := s.cfg.Store.CreateCard(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Last4))
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, "last4 must be exactly 4 digits")
	case err != nil:
		s.fail(w, r, err, "Failed to create credit card")
	default:
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid credit card ID")
		return
	}
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Last4) == "" {
		writeError(w, http.StatusBadRequest, "Missing name or last4")
		return
	}
	err := s.cfg.Store.UpdateCard(r.Context(), id, strings.TrimSpace(req.Name), strings.TrimSpace(req.Last4))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Credit card not found")
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, "last4 must be exactly 4 digits")
	case err != nil:
		s.fail(w, r, err, "Failed to update credit card")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid credit card ID")
		return
	}
	err := s.cfg.Store.DeleteCard(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Credit card not found")
	case err != nil:
		s.fail(w, r, err, "Failed to delete credit card")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// Cycles

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.cfg.Store.ListCycles(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to list billing cycles")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cycles))
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		writeError(w, http.StatusBadRequest, "Missing start_date or end_date")
		return
	}
	start, err1 := model.ParseDate(req.StartDate)
	end, err2 := model.ParseDate(req.EndDate)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD")
		return
	}
	cycle, err := s.cfg.Store.CreateCycle(r.Context(), start, end)
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, "end_date must not be before start_date")
	case err != nil:
		s.fail(w, r, err, "Failed to create billing cycle")
	default:
		writeJSON(w, http.StatusCreated, cycle)
	}
}

func (s *Server) handleDeleteCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	err := s.cfg.Store.DeleteCycle(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Billing cycle not found")
	case err != nil:
		s.fail(w, r, err, "Failed to delete billing cycle")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	err := s.cfg.Store.CloseCycle(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Billing cycle not found")
	case err != nil:
		s.fail(w, r, err, "Failed to close billing cycle")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// Budgets

type budgetRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.cfg.Store.ListBudgets(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to list budgets")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(budgets))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing budget name")
		return
	}
	b, err := s.cfg.Store.CreateBudget(r.Context(), name, strings.TrimSpace(req.Icon))
	switch {
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "A budget with this name already exists")
	case err != nil:
		s.fail(w, r, err, "Failed to create budget")
	default:
		writeJSON(w, http.StatusCreated, b)
	}
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid budget ID")
		return
	}
	b, err := s.cfg.Store.GetBudget(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Budget not found")
	case err != nil:
		s.fail(w, r, err, "Failed to load budget")
	default:
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid budget ID")
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing budget name")
		return
	}
	err := s.cfg.Store.UpdateBudget(r.Context(), id, name, strings.TrimSpace(req.Icon))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Budget not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "A budget with this name already exists")
	case err != nil:
		s.fail(w, r, err, "Failed to update budget")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid budget ID")
		return
	}
	err := s.cfg.Store.DeleteBudget(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Budget not found")
	case err != nil:
		s.fail(w, r, err, "Failed to delete budget")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleRecentMerchants(w http.ResponseWriter, r *http.Request) {
	since := s.cfg.Now().Add(-recentMerchantWindow)
	merchants, err := s.cfg.Store.RecentUnassignedMerchants(r.Context(), 50, since)
	if err != nil {
		s.fail(w, r, err, "Failed to list recent merchants")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(merchants))
}

func (s *Server) handleListBudgetMerchants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid budget ID")
		return
	}
	if _, err := s.cfg.Store.GetBudget(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Budget not found")
		return
	}
	merchants, err := s.cfg.Store.ListBudgetMerchants(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Failed to list budget merchants")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(merchants))
}

type merchantRequest struct {
	Merchant string `json:"merchant"`
}

func (s *Server) budgetMerchantRequest(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid budget ID")
		return 0, "", false
	}
	var req merchantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return 0, "", false
	}
	name := strings.TrimSpace(req.Merchant)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing merchant name")
		return 0, "", false
	}
	return id, name, true
}

func (s *Server) handleAddBudgetMerchant(w http.ResponseWriter, r *http.Request) {
	id, name, ok := s.budgetMerchantRequest(w, r)
	if !ok {
		return
	}
	bm, err := s.cfg.Store.AddBudgetMerchant(r.Context(), id, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Budget not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Merchant is already assigned to this budget")
	case err != nil:
		s.fail(w, r, err, "Failed to add merchant to budget")
	default:
		writeJSON(w, http.StatusCreated, bm)
	}
}

func (s *Server) handleRemoveBudgetMerchant(w http.ResponseWriter, r *http.Request) {
	id, name, ok := s.budgetMerchantRequest(w, r)
	if !ok {
		return
	}
	err := s.cfg.Store.RemoveBudgetMerchant(r.Context(), id, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Merchant not found on this budget")
	case err != nil:
		s.fail(w, r, err, "Failed to remove merchant from budget")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleSetAutoAssociation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Merchant      string `json:"merchant"`
		NewBudgetName string `json:"newBudgetName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	merchant := strings.TrimSpace(req.Merchant)
	budget := strings.TrimSpace(req.NewBudgetName)
	if merchant == "" || budget == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: merchant and newBudgetName")
		return
	}
	err := s.cfg.Store.SetAutoAssociation(r.Context(), merchant, budget)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Budget not found")
	case err != nil:
		s.fail(w, r, err, "Failed to update auto-association")
	default:
		s.Publish(EventAutoAssociationSet, userOf(r), map[string]any{"merchant": merchant, "budget": budget})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
