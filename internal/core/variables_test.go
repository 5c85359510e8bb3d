package core

import (
	"errors"
	"testing"
)

func TestNormalizeVariableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Name", "name"},
		{"  First Name ", "first_name"},
		{"Due\tDate", "due_date"},
		{"a   b", "a_b"},
		{"already_normal", "already_normal"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeVariableName(tt.in); got != tt.want {
			t.Errorf("NormalizeVariableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry(nil)

	v, err := r.Add("Client Name")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if v.Name != "client_name" || v.Type != VariableCustom {
		t.Errorf("Add() = %+v, want client_name/custom", v)
	}

	if _, err := r.Add("CLIENT   name"); !errors.Is(err, ErrDuplicateVariable) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateVariable", err)
	}
	if _, err := r.Add("  "); !errors.Is(err, ErrEmptyVariableName) {
		t.Errorf("blank Add() error = %v, want ErrEmptyVariableName", err)
	}
	if got := len(r.Variables()); got != 1 {
		t.Errorf("len(Variables()) = %d, want 1 after rejected adds", got)
	}
}

func TestRegistryImportColumns_FirstWins(t *testing.T) {
	r := NewRegistry([]Variable{{Name: "email", Type: VariableCustom}})

	added, skipped := r.ImportColumns([]string{"Name", "Email", "Due Date", "name"})

	if len(added) != 2 {
		t.Fatalf("len(added) = %d, want 2", len(added))
	}
	if added[0].Name != "name" || added[1].Name != "due_date" {
		t.Errorf("added = %+v", added)
	}
	if len(skipped) != 2 || skipped[0] != "Email" || skipped[1] != "name" {
		t.Errorf("skipped = %v, want [Email name]", skipped)
	}

	vars := r.Variables()
	if vars[0].Type != VariableCustom {
		t.Errorf("existing email variable kind = %q, want custom kept", vars[0].Type)
	}
	if vars[1].Type != VariableCSV {
		t.Errorf("imported variable kind = %q, want csv", vars[1].Type)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry([]Variable{{Name: "a"}, {Name: "b"}})

	if err := r.Remove("A"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if r.Has("a") || !r.Has("b") {
		t.Errorf("Variables() = %+v after removing a", r.Variables())
	}
	if err := r.Remove("zzz"); !errors.Is(err, ErrVariableNotFound) {
		t.Errorf("Remove(missing) error = %v, want ErrVariableNotFound", err)
	}
}

func TestNewRegistry_CopiesInput(t *testing.T) {
	in := []Variable{{Name: "a"}}
	r := NewRegistry(in)
	r.Add("b")
	in[0].Name = "changed"

	if got := r.Variables()[0].Name; got != "a" {
		t.Errorf("registry aliased caller slice: %q", got)
	}
}
