package capability

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is returned when dependencies form a cycle.
var ErrCycle = errors.New("dependency cycle")

// ConflictPair names two capabilities that cannot be selected together.
// A precedes B in the resolved order.
type ConflictPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Resolution is the dependency closure of a selection.
type Resolution struct {
	Resolved  []string          `json:"resolved"`
	Added     []string          `json:"added"`
	AddedBy   map[string]string `json:"added_by,omitempty"`
	Conflicts []ConflictPair    `json:"conflicts"`
	Unknown   []string          `json:"unknown,omitempty"`
	Valid     bool              `json:"valid"`
}

// ValidationResult reports problems with a selection.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Summary describes a selection for display.
type Summary struct {
	TotalSelected  int              `json:"total_selected"`
	TotalResolved  int              `json:"total_resolved"`
	Added          int              `json:"added_dependencies"`
	Conflicts      int              `json:"conflicts"`
	AuthServices   []string         `json:"auth_services"`
	Validation     ValidationResult `json:"validation"`
	ExecutionOrder []string         `json:"execution_order"`
}

// Resolve expands selected into its transitive dependency closure and
// reports conflicting pairs inside the closure. Selected ids keep their
// order; added dependencies follow in discovery order.
func (c *Catalog) Resolve(selected []string) Resolution {
	res := Resolution{AddedBy: make(map[string]string)}
	in := make(map[string]bool)

	var queue []string
	for _, id := range selected {
		if in[id] {
			continue
		}
		if !c.Has(id) {
			res.Unknown = append(res.Unknown, id)
			in[id] = true
			continue
		}
		in[id] = true
		res.Resolved = append(res.Resolved, id)
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		cp, _ := c.Get(id)
		for _, dep := range cp.Dependencies {
			if in[dep] {
				continue
			}
			in[dep] = true
			res.Resolved = append(res.Resolved, dep)
			res.Added = append(res.Added, dep)
			res.AddedBy[dep] = id
			queue = append(queue, dep)
		}
	}

	res.Conflicts = c.conflictsWithin(res.Resolved)
	res.Valid = len(res.Conflicts) == 0
	return res
}

func (c *Catalog) conflictsWithin(ids []string) []ConflictPair {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	seen := make(map[ConflictPair]bool)
	var out []ConflictPair
	for _, id := range ids {
		cp, _ := c.Get(id)
		for _, other := range cp.Conflicts {
			j, ok := pos[other]
			if !ok {
				continue
			}
			pair := ConflictPair{A: id, B: other}
			if j < pos[id] {
				pair = ConflictPair{A: other, B: id}
			}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			out = append(out, pair)
		}
	}
	return out
}

// Order returns ids with every dependency placed before its dependents.
// Dependencies missing from ids are included ahead of the first id that
// needs them. Input order is kept wherever dependencies allow it.
func (c *Catalog) Order(ids []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var out []string
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), id)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}

		state[id] = visiting
		path = append(path, id)
		if cp, ok := c.Get(id); ok {
			for _, dep := range cp.Dependencies {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		out = append(out, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ExecutionOrder resolves selected and orders the closure for generation.
// Unknown ids are dropped.
func (c *Catalog) ExecutionOrder(selected []string) ([]string, error) {
	return c.Order(c.Resolve(selected).Resolved)
}

// RequiredAuthServices lists the external services the resolved selection
// must authenticate with, in first-seen order.
func (c *Catalog) RequiredAuthServices(selected []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range c.Resolve(selected).Resolved {
		cp, _ := c.Get(id)
		if !cp.RequiresAuth || cp.AuthService == "" || seen[cp.AuthService] {
			continue
		}
		seen[cp.AuthService] = true
		out = append(out, cp.AuthService)
	}
	return out
}

// Validate checks a selection. Unknown ids and conflicts are errors;
// auto-added dependencies and required authentication are warnings.
func (c *Catalog) Validate(selected []string) ValidationResult {
	res := c.Resolve(selected)
	v := ValidationResult{Errors: []string{}, Warnings: []string{}}

	for _, id := range res.Unknown {
		v.Errors = append(v.Errors, "Unknown capability: "+id)
	}
	for _, pair := range res.Conflicts {
		v.Errors = append(v.Errors, fmt.Sprintf("Conflicting capability: %s", c.name(pair.B)))
	}
	for _, dep := range res.Added {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Missing dependency: %s requires %s", c.name(res.AddedBy[dep]), c.name(dep)))
	}
	if services := c.RequiredAuthServices(selected); len(services) > 0 {
		v.Warnings = append(v.Warnings, "Authentication required for: "+strings.Join(services, ", "))
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// CanAdd reports whether id can join current without introducing a conflict.
// The reason is empty when it can.
func (c *Catalog) CanAdd(id string, current []string) (bool, string) {
	if !c.Has(id) {
		return false, "Unknown capability"
	}
	for _, cur := range current {
		if cur == id {
			return false, "Already selected"
		}
	}

	before := c.Resolve(current)
	have := make(map[string]bool, len(before.Resolved))
	for _, r := range before.Resolved {
		have[r] = true
	}

	// Check the candidate and every dependency it would bring in.
	incoming := c.Resolve([]string{id}).Resolved
	for _, in := range incoming {
		cp, _ := c.Get(in)
		for _, other := range cp.Conflicts {
			if have[other] {
				return false, "Conflicts with " + c.name(other)
			}
		}
		for existing := range have {
			ex, _ := c.Get(existing)
			for _, other := range ex.Conflicts {
				if other == in {
					return false, "Conflicts with " + c.name(existing)
				}
			}
		}
	}
	return true, ""
}

// Summary builds a display summary of a selection.
func (c *Catalog) Summary(selected []string) Summary {
	res := c.Resolve(selected)
	order, err := c.Order(res.Resolved)
	if err != nil {
		order = nil
	}
	return Summary{
		TotalSelected:  len(selected),
		TotalResolved:  len(res.Resolved),
		Added:          len(res.Added),
		Conflicts:      len(res.Conflicts),
		AuthServices:   c.RequiredAuthServices(selected),
		Validation:     c.Validate(selected),
		ExecutionOrder: order,
	}
}
