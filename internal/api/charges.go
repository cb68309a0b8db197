package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/store"
)

func (s *Server) handleListCycleCharges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	if _, err := s.cfg.Store.GetCycle(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Billing cycle not found")
		return
	}
	charges, err := s.cfg.Store.ListChargesForCycle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Failed to list charges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charges": nonNil(charges)})
}

// handleCycleChargesAction either bulk-assigns allocations or refreshes
// auto-associations, depending on the body.
func (s *Server) handleCycleChargesAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid billing cycle ID")
		return
	}
	var req struct {
		Assignments json.RawMessage `json:"assignments"`
		Refresh     string          `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid assignments data")
		return
	}

	if req.Refresh == "auto-associations" {
		n, err := s.cfg.Store.RefreshAutoAssociations(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Billing cycle not found")
		case err != nil:
			s.fail(w, r, err, "Failed to refresh auto-associations")
		default:
			s.Publish(EventAutoAssociations, userOf(r), map[string]any{"cycle_id": id, "updated": n})
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
		}
		return
	}

	var items []struct {
		ID          *int64  `json:"id"`
		AllocatedTo *string `json:"allocated_to"`
	}
	if isMissing(req.Assignments) || json.Unmarshal(req.Assignments, &items) != nil {
		writeError(w, http.StatusBadRequest, "Invalid assignments data")
		return
	}
	assignments := make([]model.Assignment, 0, len(items))
	for _, it := range items {
		if it.ID == nil || *it.ID <= 0 || it.AllocatedTo == nil || strings.TrimSpace(*it.AllocatedTo) == "" {
			writeError(w, http.StatusBadRequest, "Each assignment must have id and allocated_to")
			return
		}
		assignments = append(assignments, model.Assignment{ID: *it.ID, AllocatedTo: strings.TrimSpace(*it.AllocatedTo)})
	}

	err := s.cfg.Store.AssignToBudgets(r.Context(), assignments)
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, "allocated_to must be an existing budget name")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Charge not found")
	case err != nil:
		s.fail(w, r, err, "Failed to assign charges")
	default:
		s.Publish(EventChargesAssigned, userOf(r), map[string]any{"cycle_id": id, "count": len(assignments)})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": len(assignments)})
	}
}

func (s *Server) chargeFromPath(w http.ResponseWriter, r *http.Request) (model.Charge, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid charge ID")
		return model.Charge{}, false
	}
	ch, err := s.cfg.Store.GetPayment(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Charge not found")
		return ch, false
	case err != nil:
		s.fail(w, r, err, "Failed to load charge")
		return ch, false
	}
	return ch, true
}

func (s *Server) handleGetCharge(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.chargeFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charge": ch})
}

func (s *Server) handleUpdateCharge(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.chargeFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Merchant    string          `json:"merchant"`
		Amount      json.RawMessage `json:"amount"`
		AllocatedTo string          `json:"allocated_to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	merchant := strings.TrimSpace(req.Merchant)
	allocated := strings.TrimSpace(req.AllocatedTo)
	if merchant == "" || isMissing(req.Amount) || allocated == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: merchant, amount, allocated_to")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "Amount must be a valid number")
		return
	}
	if _, err := s.cfg.Store.GetBudgetByName(r.Context(), allocated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "allocated_to must be an existing budget name")
			return
		}
		s.fail(w, r, err, "Failed to update charge")
		return
	}

	err := s.cfg.Store.UpdatePayment(r.Context(), ch.ID, merchant, amount, allocated)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Charge not found")
	case err != nil:
		s.fail(w, r, err, "Failed to update charge")
	default:
		s.Publish(EventChargeUpdated, userOf(r), map[string]any{"charge_id": ch.ID})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleAmazonDetails(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.chargeFromPath(w, r)
	if !ok {
		return
	}
	orderID, found := orderid.ExtractFromMerchant(ch.Merchant)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     "No Amazon order ID found",
			"merchant":  ch.Merchant,
			"is_amazon": orderid.IsAmazon(ch.Merchant),
		})
		return
	}

	// Cached orders are served even when no worker is configured.
	order, err := s.cfg.Store.GetCachedOrder(r.Context(), orderID, s.cfg.OrderCacheMaxAge)
	if err != nil {
		if !s.cfg.Orders.Configured() {
			writeError(w, http.StatusServiceUnavailable, "Amazon order lookup is not configured")
			return
		}
		order, err = s.cfg.Orders.FetchOrder(r.Context(), orderID)
	}
	if err != nil {
		s.log.WithError(err).WithField("order_id", orderID).Warn("amazon order lookup failed")
		msg := "Failed to fetch Amazon order details"
		if errors.Is(err, orders.ErrNotFound) {
			msg = "Amazon order not found"
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    msg,
			"order_id": orderID,
			"merchant": ch.Merchant,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"charge": map[string]any{
			"id":       ch.ID,
			"merchant": ch.Merchant,
			"amount":   ch.Amount,
		},
		"order":      order,
		"categories": orderid.Categorize(order.Items),
	})
}

func (s *Server) handleNormalizeMerchants(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batchSize"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	res, err := s.cfg.Store.RenormalizeMerchants(r.Context(), req.BatchSize)
	if err != nil {
		s.fail(w, r, err, "Failed to normalize merchants")
		return
	}
	s.Publish(EventMerchantsRenormalized, userOf(r), map[string]any{
		"payments_updated":         res.Payments,
		"budget_merchants_updated": res.BudgetMerchants,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                  true,
		"payments_updated":         res.Payments,
		"budget_merchants_updated": res.BudgetMerchants,
	})
}
