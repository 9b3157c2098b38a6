package refsource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestSource(t *testing.T, content string) *Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write refs file: %v", err)
	}
	return New(path)
}

func TestParagraph(t *testing.T) {
	src := newTestSource(t, `{
		"Likutei Moharan": [
			[["first paragraph", "second paragraph"]],
			[["torah two"]]
		],
		"Likutei Moharan, Part_II": [
			[["part two text"]]
		]
	}`)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"nested lookup with 1-based indices", "Likutei Moharan.1.1.2", "second paragraph"},
		{"second torah", "Likutei Moharan.2.1.1", "torah two"},
		{"escaped comma decodes", "Likutei Moharan%2C_Part_II.1.1.1", "part two text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Paragraph(tt.ref)
			if err != nil {
				t.Fatalf("Paragraph(%q) failed: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Fatalf("Paragraph(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		if _, err := src.Paragraph("Sichot HaRan.1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		for _, ref := range []string{"Likutei Moharan.0", "Likutei Moharan.3", "Likutei Moharan.x"} {
			if _, err := src.Paragraph(ref); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Paragraph(%q) err = %v, want ErrNotFound", ref, err)
			}
		}
	})

	t.Run("structural node is not text", func(t *testing.T) {
		if _, err := src.Paragraph("Likutei Moharan.1"); !errors.Is(err, ErrNotText) {
			t.Fatalf("err = %v, want ErrNotText", err)
		}
	})

	t.Run("missing source file", func(t *testing.T) {
		src := New(filepath.Join(t.TempDir(), "absent.json"))
		if _, err := src.Paragraph("Likutei Moharan.1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("malformed source file", func(t *testing.T) {
		src := newTestSource(t, "{broken")
		if _, err := src.Paragraph("Likutei Moharan.1"); err == nil || errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want a parse error", err)
		}
	})
}
