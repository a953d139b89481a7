package model

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			in:   `{"passed": true}`,
			want: `{"passed": true}`,
		},
		{
			name: "fenced",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "surrounding prose",
			in:   `Here is my analysis: {"a": {"b": 2}} hope it helps`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "braces inside strings",
			in:   `{"msg": "use {curly} braces"}`,
			want: `{"msg": "use {curly} braces"}`,
		},
		{
			name: "escaped quotes",
			in:   `{"msg": "she said \"hi\" {}"}`,
			want: `{"msg": "she said \"hi\" {}"}`,
		},
		{
			name:    "no object",
			in:      "just words",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			in:      `{"a": 1`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			in:      `{not json}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `[1, 2, 3]`, `[1, 2, 3]`, false},
		{"prose", `Result: [1, 3] done`, `[1, 3]`, false},
		{"nested", `[{"index": 1}]`, `[{"index": 1}]`, false},
		{"brackets in strings", `[{"m": "a[0]"}]`, `[{"m": "a[0]"}]`, false},
		{"none", "nope", "", true},
		{"unbalanced", "[1, 2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONArray(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSONArray: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONLargeInput(t *testing.T) {
	padded := strings.Repeat("x", 10000) + `{"ok": true}` + strings.Repeat("y", 10000)
	got, err := ExtractJSON(padded)
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"ok": true}` {
		t.Errorf("got %q", got)
	}
}
