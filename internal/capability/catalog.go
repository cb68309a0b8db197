// Package capability holds the genproj capability catalog and the resolver
// that expands a selection into a conflict-checked, dependency-ordered plan.
package capability

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Capability is one selectable unit of project scaffolding.
type Capability struct {
	ID            string               `yaml:"id" json:"id"`
	Name          string               `yaml:"name" json:"name"`
	Description   string               `yaml:"description" json:"description"`
	Category      string               `yaml:"category" json:"category"`
	Dependencies  []string             `yaml:"dependencies" json:"dependencies"`
	Conflicts     []string             `yaml:"conflicts" json:"conflicts"`
	Configuration map[string]any       `yaml:"configuration" json:"configuration"`
	// ConfigSchema constrains per-field overrides of Configuration.
	ConfigSchema  map[string]FieldRule `yaml:"configurationSchema" json:"configurationSchema,omitempty"`
	RequiresAuth  bool                 `yaml:"requiresAuth" json:"requiresAuth"`
	AuthService   string               `yaml:"authService" json:"authService,omitempty"`
	Icon          string               `yaml:"icon" json:"icon"`
	Tags          []string             `yaml:"tags" json:"tags"`
}

// Category groups capabilities for display.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Color       string `yaml:"color" json:"color"`
}

// Catalog is an immutable, validated set of capabilities.
type Catalog struct {
	caps       []Capability
	byID       map[string]int
	categories []Category
	catByID    map[string]int
}

type catalogFile struct {
	Categories   []Category   `yaml:"categories"`
	Capabilities []Capability `yaml:"capabilities"`
}

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid capability catalog")

//go:embed catalog.yaml
var defaultCatalogYAML string

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(strings.NewReader(defaultCatalogYAML))
		if err != nil {
			panic(fmt.Sprintf("built-in capability catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return NewCatalog(f.Categories, f.Capabilities)
}

// NewCatalog validates capabilities against categories and builds a catalog.
// An empty category list disables the category check.
func NewCatalog(categories []Category, caps []Capability) (*Catalog, error) {
	c := &Catalog{
		byID:    make(map[string]int, len(caps)),
		catByID: make(map[string]int, len(categories)),
	}

	for _, cat := range categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("%w: category with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.catByID[cat.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, cat.ID)
		}
		c.catByID[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}

	for _, cp := range caps {
		if cp.ID == "" {
			return nil, fmt.Errorf("%w: capability with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.byID[cp.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate capability %q", ErrInvalidCatalog, cp.ID)
		}
		if len(categories) > 0 {
			if _, ok := c.catByID[cp.Category]; !ok {
				return nil, fmt.Errorf("%w: capability %q has unknown category %q", ErrInvalidCatalog, cp.ID, cp.Category)
			}
		}
		if cp.Name == "" {
			cp.Name = cp.ID
		}
		c.byID[cp.ID] = len(c.caps)
		c.caps = append(c.caps, cp)
	}

	for _, cp := range c.caps {
		for _, dep := range cp.Dependencies {
			if dep == cp.ID {
				return nil, fmt.Errorf("%w: capability %q depends on itself", ErrInvalidCatalog, cp.ID)
			}
			if _, ok := c.byID[dep]; !ok {
				return nil, fmt.Errorf("%w: capability %q depends on unknown %q", ErrInvalidCatalog, cp.ID, dep)
			}
		}
		for field, rule := range cp.ConfigSchema {
			if err := rule.check(); err != nil {
				return nil, fmt.Errorf("%w: capability %q field %q: %w", ErrInvalidCatalog, cp.ID, field, err)
			}
		}
		for _, other := range cp.Conflicts {
			if _, ok := c.byID[other]; !ok {
				return nil, fmt.Errorf("%w: capability %q conflicts with unknown %q", ErrInvalidCatalog, cp.ID, other)
			}
		}
	}

	if _, err := c.Order(c.IDs()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	return c, nil
}

// Get returns the capability with the given id.
func (c *Catalog) Get(id string) (Capability, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Capability{}, false
	}
	return c.caps[i], true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every capability in catalog order.
func (c *Catalog) All() []Capability {
	out := make([]Capability, len(c.caps))
	copy(out, c.caps)
	return out
}

// IDs returns every capability id in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.caps))
	for i, cp := range c.caps {
		out[i] = cp.ID
	}
	return out
}

// Categories returns every category in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Category returns a category by id.
func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.catByID[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// ByCategory returns the capabilities in one category.
func (c *Catalog) ByCategory(category string) []Capability {
	var out []Capability
	for _, cp := range c.caps {
		if cp.Category == category {
			out = append(out, cp)
		}
	}
	return out
}

// SearchTags returns capabilities carrying any of the given tags.
func (c *Catalog) SearchTags(tags ...string) []Capability {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var out []Capability
	for _, cp := range c.caps {
		for _, t := range cp.Tags {
			if want[strings.ToLower(t)] {
				out = append(out, cp)
				break
			}
		}
	}
	return out
}

// UsedCategories returns category ids that have at least one capability,
// in first-use order.
func (c *Catalog) UsedCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cp := range c.caps {
		if !seen[cp.Category] {
			seen[cp.Category] = true
			out = append(out, cp.Category)
		}
	}
	return out
}

func (c *Catalog) name(id string) string {
	if cp, ok := c.Get(id); ok {
		return cp.Name
	}
	return id
}
