package tools

import (
	"errors"
	"testing"
)

type sampleArgs struct {
	Query string `json:"query" jsonschema:"description=What to look for"`
	Limit int    `json:"limit,omitempty"`
}

func TestReflectSchema(t *testing.T) {
	schema := ReflectSchema[sampleArgs]("sample", "A sample tool")

	if schema.Title != "sample" || schema.Description != "A sample tool" {
		t.Errorf("Expected title and description to be set, got %s / %s", schema.Title, schema.Description)
	}
	if schema.Type != "object" {
		t.Errorf("Expected object type, got %s", schema.Type)
	}
	if schema.Schema != "" || schema.ID != "" {
		t.Errorf("Expected $schema and $id to be stripped, got %q %q", schema.Schema, schema.ID)
	}

	query, ok := schema.Properties["query"]
	if !ok {
		t.Fatal("Expected query property")
	}
	if query.Description != "What to look for" {
		t.Errorf("Expected tag description, got %s", query.Description)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("Expected only query to be required, got %v", schema.Required)
	}
}

func TestValidateArguments(t *testing.T) {
	schema := ReflectSchema[sampleArgs]("sample", "")

	tests := []struct {
		name  string
		args  map[string]any
		valid bool
	}{
		{"valid", map[string]any{"query": "bail"}, true},
		{"optional present", map[string]any{"query": "bail", "limit": 3}, true},
		{"missing required", map[string]any{}, false},
		{"nil args", nil, false},
		{"wrong type", map[string]any{"query": 12}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArguments(schema, tt.args)
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.valid {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if !errors.Is(err, ErrInvalidArguments) {
					t.Error("Expected error to unwrap to ErrInvalidArguments")
				}
			}
		})
	}
}

func TestValidateArgumentsNilSchema(t *testing.T) {
	if err := ValidateArguments(nil, map[string]any{"x": 1}); err != nil {
		t.Errorf("Expected nil schema to accept anything, got %v", err)
	}
}
