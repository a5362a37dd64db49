package toolargs

import (
	"testing"
)

func TestReconstructEmpty(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
	}{
		{"nil", nil},
		{"empty slice", []string{}},
		{"empty strings", []string{"", ""}},
		{"whitespace", []string{"  ", "\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg := Reconstruct(tt.fragments, "query")
			if arg.HasValue {
				t.Errorf("Expected no value, got %q", arg.Value)
			}
			if arg.Complete() {
				t.Error("Expected incomplete argument")
			}
		})
	}
}

func TestReconstructComplete(t *testing.T) {
	arg := Reconstruct([]string{`{"query":`, ` "bail `, `commercial"}`}, "query")

	if !arg.Complete() {
		t.Fatal("Expected complete argument")
	}
	if !arg.HasValue || arg.Value != "bail commercial" {
		t.Errorf("Expected 'bail commercial', got %q (has=%v)", arg.Value, arg.HasValue)
	}
	if arg.Raw != `{"query": "bail commercial"}` {
		t.Errorf("Expected raw to be the joined fragments, got %q", arg.Raw)
	}
}

func TestReconstructWithoutField(t *testing.T) {
	arg := Reconstruct([]string{`{"date_str":"2099-01-01"}`}, "")
	if !arg.Complete() {
		t.Fatal("Expected complete argument")
	}
	if arg.HasValue {
		t.Errorf("Expected no extracted value without a field, got %q", arg.Value)
	}
	if arg.Object["date_str"] != "2099-01-01" {
		t.Errorf("Expected date_str in object, got %v", arg.Object)
	}
}

func TestReconstructPartial(t *testing.T) {
	arg := Reconstruct([]string{`{"query": "délai de pres`}, "query")

	if arg.Complete() {
		t.Error("Expected partial argument")
	}
	if !arg.HasValue || arg.Value != "délai de pres" {
		t.Errorf("Expected salvaged prefix, got %q (has=%v)", arg.Value, arg.HasValue)
	}
}

func TestExtractField(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		field    string
		expected string
		ok       bool
	}{
		{"complete string", `{"query":"bail"}`, "query", "bail", true},
		{"complete with spaces", `  {"query" : "bail"}  `, "query", "bail", true},
		{"complete number", `{"count":3}`, "count", "3", true},
		{"complete array", `{"id_list":["a","b"]}`, "id_list", `["a","b"]`, true},
		{"complete missing field", `{"other":"x"}`, "query", "", false},
		{"complete empty string", `{"query":""}`, "query", "", true},
		{"unterminated string", `{"query":"bail comm`, "query", "bail comm", true},
		{"terminated but object open", `{"query":"bail", "x":`, "query", "bail", true},
		{"escaped quote", `{"query":"article \"L. 145\" du code`, "query", `article "L. 145" du code`, true},
		{"escaped backslash before quote", `{"query":"a\\", "b":1`, "query", `a\`, true},
		{"unicode escape", `{"query":"d\u00e9lai"`, "query", "délai", true},
		{"cut escape", `{"query":"bail\`, "query", "bail", true},
		{"cut unicode escape", `{"query":"d\u00`, "query", "d", true},
		{"nested object", `{"filter":{"code":"civil"`, "filter", `{"code":"civil"`, true},
		{"number in partial", `{"count":3, "x"`, "count", "", false},
		{"no colon yet", `{"query"`, "query", "", false},
		{"colon then nothing", `{"query": `, "query", "", false},
		{"field absent", `{"que`, "query", "", false},
		{"not json", `hello world`, "query", "", false},
		{"newline before value", "{\"query\":\n  \"bail\"", "query", "bail", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractField(tt.text, tt.field)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v (value %q)", tt.ok, ok, got)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStrictAndSalvageAgree(t *testing.T) {
	inputs := []string{
		`{"query":"bail commercial"}`,
		`{"query": "délai de prescription contrat"}`,
		`{"query":"article \"1240\" code civil"}`,
		`{"other":1,"query":"résiliation"}`,
		`{"query":"a\\b"}`,
		`{"query":{"a":1}}`,
		`{"query": {"code": "civil", "numero": "1240"}, "limit": 3}`,
		`{"query":{"note":"accolade } dans le texte"}}`,
	}

	for _, in := range inputs {
		obj, ok := parseObject(in)
		if !ok {
			t.Fatalf("Expected %s to parse strictly", in)
		}
		strict, ok := fieldValue(obj, "query")
		if !ok {
			t.Fatalf("Expected strict value for %s", in)
		}
		salvaged, ok := salvageField(in, "query")
		if !ok {
			t.Fatalf("Expected salvaged value for %s", in)
		}
		if strict != salvaged {
			t.Errorf("Expected salvage to match strict for %s: %q vs %q", in, strict, salvaged)
		}
	}
}

func TestReconstructProgressive(t *testing.T) {
	// every prefix of a streamed argument must reconstruct without panicking
	full := `{"query": "responsabilité du bailleur \"art. 1719\""}`
	for i := 0; i <= len(full); i++ {
		arg := Reconstruct([]string{full[:i]}, "query")
		if i == len(full) && arg.Value != `responsabilité du bailleur "art. 1719"` {
			t.Errorf("Expected full value at end, got %q", arg.Value)
		}
	}
}
