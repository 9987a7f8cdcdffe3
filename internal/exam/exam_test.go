package exam

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	qs := Default()
	if len(qs) != 3 {
		t.Fatalf("got %d questions, want 3", len(qs))
	}
	total := 0
	for _, q := range qs {
		total += q.MaxMarks
	}
	if total != 30 {
		t.Errorf("total marks = %d, want 30", total)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	qs, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(qs, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", qs)
	}
}

func TestLoadBundledFile(t *testing.T) {
	qs, err := Load(filepath.Join("..", "..", "questions", "default.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(qs, Default()) {
		t.Errorf("bundled file differs from defaults: %+v", qs)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	data := `{"questions": [{"id": "A", "name": "Essay", "marks": 10, "marker_text": "Write an essay", "min_length": 20}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	qs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 1 || qs[0].Marker != "Write an essay" || qs[0].MaxMarks != 10 || qs[0].MinLength != 20 {
		t.Errorf("Load() = %+v", qs)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"malformed", "questions: [unclosed"},
		{"missing marker", "questions:\n  - id: Q1\n    marks: 5\n"},
		{"zero marks", "questions:\n  - id: Q1\n    marker_text: Go\n    marks: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
