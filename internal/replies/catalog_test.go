package replies

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSubstitutesVars(t *testing.T) {
	c := NewCatalog()
	got := c.Render("en", KindReminder, Vars{Name: "Asha", Amount: 150, DueDate: "2026-09-01"})
	if !strings.Contains(got, "Asha") || !strings.Contains(got, "150.00") || !strings.Contains(got, "2026-09-01") {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	c := NewCatalog()
	got := c.Render("fr", KindApology, Vars{})
	want := c.Render("en", KindApology, Vars{})
	if got != want {
		t.Fatalf("Render(fr) = %q, want english fallback %q", got, want)
	}
}

func TestLoadCatalogMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replies.yaml")
	override := "en:\n  reprompt: \"Say again?\"\n"
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if got := c.Render("en", KindReprompt, Vars{}); got != "Say again?" {
		t.Fatalf("Render(reprompt) = %q, want override", got)
	}
	// Untouched templates survive the merge.
	if got := c.Render("en", KindClosing, Vars{}); !strings.Contains(got, "Goodbye") {
		t.Fatalf("Render(closing) = %q, default lost", got)
	}
}

func TestLoadCatalogRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte(":\t not yaml ["), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatalf("LoadCatalog() should fail on malformed yaml")
	}
}
