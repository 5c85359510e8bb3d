package core

import (
	"fmt"
	"strings"
)

// NormalizeVariableName trims s, lowercases it and collapses every run of
// whitespace into a single underscore.
//
//	NormalizeVariableName("  First Name ") // "first_name"
func NormalizeVariableName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

// Registry is the ordered set of variables registered on a template.
// Names are normalized and unique.
type Registry struct {
	vars []Variable
}

// NewRegistry wraps an existing variable list. The slice is copied.
func NewRegistry(vars []Variable) *Registry {
	r := &Registry{vars: make([]Variable, len(vars))}
	copy(r.vars, vars)
	return r
}

// Variables returns a copy of the registered variables in registration order.
func (r *Registry) Variables() []Variable {
	out := make([]Variable, len(r.vars))
	copy(out, r.vars)
	return out
}

// Has reports whether name, after normalization, is registered.
func (r *Registry) Has(name string) bool {
	return r.index(NormalizeVariableName(name)) >= 0
}

func (r *Registry) index(normalized string) int {
	for i, v := range r.vars {
		if v.Name == normalized {
			return i
		}
	}
	return -1
}

// Add registers a custom variable. The registry is unchanged on error.
func (r *Registry) Add(rawName string) (Variable, error) {
	name := NormalizeVariableName(rawName)
	if name == "" {
		return Variable{}, ErrEmptyVariableName
	}
	if r.index(name) >= 0 {
		return Variable{}, fmt.Errorf("%q: %w", name, ErrDuplicateVariable)
	}
	v := Variable{Name: name, Type: VariableCustom}
	r.vars = append(r.vars, v)
	return v, nil
}

// ImportColumns registers each header as a csv variable. Headers whose
// normalized name is empty or already registered are skipped, so the first
// registration wins. It returns the variables that were added and the
// names that were skipped.
func (r *Registry) ImportColumns(headers []string) (added []Variable, skipped []string) {
	for _, h := range headers {
		name := NormalizeVariableName(h)
		if name == "" || r.index(name) >= 0 {
			skipped = append(skipped, h)
			continue
		}
		v := Variable{Name: name, Type: VariableCSV}
		r.vars = append(r.vars, v)
		added = append(added, v)
	}
	return added, skipped
}

// Remove unregisters name.
func (r *Registry) Remove(name string) error {
	i := r.index(NormalizeVariableName(name))
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrVariableNotFound)
	}
	r.vars = append(r.vars[:i], r.vars[i+1:]...)
	return nil
}

// Placeholder returns the literal token for name, e.g. "{{first_name}}".
func Placeholder(name string) string {
	return "{{" + name + "}}"
}
