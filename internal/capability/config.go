package capability

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// FieldRule constrains one configuration field. Type is one of string,
// number, boolean, object or array; empty accepts any type.
type FieldRule struct {
	Type     string   `yaml:"type" json:"type,omitempty"`
	Enum     []string `yaml:"enum" json:"enum,omitempty"`
	Required bool     `yaml:"required" json:"required,omitempty"`
}

var ruleTypes = []string{"", "string", "number", "boolean", "object", "array"}

func (r FieldRule) check() error {
	if !slices.Contains(ruleTypes, r.Type) {
		return fmt.Errorf("unknown type %q", r.Type)
	}
	if len(r.Enum) > 0 && r.Type != "" && r.Type != "string" {
		return errors.New("enum requires type string")
	}
	return nil
}

// ValidateConfiguration checks per-capability configuration overrides
// against each selected capability's schema. Overrides for capabilities
// that are not selected, or have no schema, are ignored. The returned
// messages are sorted by capability then field; nil means valid.
func (c *Catalog) ValidateConfiguration(selected []string, config map[string]map[string]any) []string {
	var errs []string
	for _, id := range selected {
		cp, ok := c.Get(id)
		if !ok || len(cp.ConfigSchema) == 0 {
			continue
		}
		values, ok := config[id]
		if !ok {
			continue
		}
		fields := make([]string, 0, len(cp.ConfigSchema))
		for f := range cp.ConfigSchema {
			fields = append(fields, f)
		}
		slices.Sort(fields)
		for _, f := range fields {
			if msg := cp.ConfigSchema[f].validate(values[f]); msg != "" {
				errs = append(errs, id+"."+f+" "+msg)
			}
		}
	}
	return errs
}

func (r FieldRule) validate(v any) string {
	if v == nil || v == "" {
		if r.Required {
			return "is required"
		}
		if v == nil {
			return ""
		}
	}
	if r.Type != "" && jsonType(v) != r.Type {
		return "must be a " + r.Type
	}
	if len(r.Enum) > 0 && !slices.Contains(r.Enum, fmt.Sprint(v)) {
		return "must be one of: " + strings.Join(r.Enum, ", ")
	}
	return ""
}

// jsonType names the JSON type of a value decoded by encoding/json.
func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}
