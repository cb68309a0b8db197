package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

func (s *Server) handleListCapabilities(w http.ResponseWriter, _ *http.Request) {
	cat := s.cfg.Catalog
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": cat.All(),
		"categories":   cat.Categories(),
		"metadata": map[string]any{
			"total":      len(cat.All()),
			"categories": cat.UsedCategories(),
			"timestamp":  s.cfg.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	})
}

// handleResolveCapabilities validates a selection and returns its resolved,
// ordered plan.
func (s *Server) handleResolveCapabilities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected      json.RawMessage `json:"selectedCapabilities"`
		Configuration json.RawMessage `json:"configuration"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var selected []string
	if !strings.HasPrefix(strings.TrimSpace(string(req.Selected)), "[") || json.Unmarshal(req.Selected, &selected) != nil {
		writeError(w, http.StatusBadRequest, "Selected capabilities must be an array")
		return
	}
	if len(selected) == 0 {
		writeError(w, http.StatusBadRequest, "At least one capability must be selected")
		return
	}

	cat := s.cfg.Catalog
	var invalid []string
	seen := make(map[string]bool, len(selected))
	duplicate := false
	for _, id := range selected {
		if !cat.Has(id) {
			invalid = append(invalid, id)
		}
		if seen[id] {
			duplicate = true
		}
		seen[id] = true
	}
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":               "Invalid capability IDs",
			"invalidCapabilities": invalid,
		})
		return
	}
	if duplicate {
		writeError(w, http.StatusBadRequest, "Duplicate capabilities are not allowed")
		return
	}

	res := cat.Resolve(selected)
	if len(res.Conflicts) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     "Capability validation failed",
			"conflicts": res.Conflicts,
		})
		return
	}
	if !isMissing(req.Configuration) {
		var config map[string]map[string]any
		if json.Unmarshal(req.Configuration, &config) != nil {
			writeError(w, http.StatusBadRequest, "Configuration must be an object keyed by capability")
			return
		}
		if errs := cat.ValidateConfiguration(selected, config); len(errs) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Configuration validation failed",
				"details": errs,
			})
			return
		}
	}
	order, err := cat.ExecutionOrder(selected)
	if err != nil {
		s.fail(w, r, err, "Failed to resolve capabilities")
		return
	}
	validation := cat.Validate(selected)

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":                validation.Valid,
		"selectedCapabilities": selected,
		"resolved":             res.Resolved,
		"added":                nonNil(res.Added),
		"requiredAuth":         nonNil(cat.RequiredAuthServices(selected)),
		"executionOrder":       order,
		"validation": map[string]any{
			"errors":   validation.Errors,
			"warnings": validation.Warnings,
		},
	})
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CapabilityID     string   `json:"capabilityId"`
		CurrentSelection []string `json:"currentSelection"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CapabilityID) == "" {
		writeError(w, http.StatusBadRequest, "Missing capabilityId")
		return
	}
	ok, reason := s.cfg.Catalog.CanAdd(req.CapabilityID, req.CurrentSelection)
	writeJSON(w, http.StatusOK, map[string]any{"canAdd": ok, "reason": reason})
}
