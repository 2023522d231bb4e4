package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cat.Len() == 0 {
		t.Fatal("embedded catalog should not be empty")
	}
	entry, err := cat.Lookup("sales_by_region")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.SQL == "" {
		t.Fatal("expected sql template")
	}
	if entry.DisplayName == "" {
		t.Fatal("expected display name")
	}
}

func TestLookupUnknownIDReturnsErrNotFound(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err = cat.Lookup("does_not_exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.yaml")
	content := []byte("queries:\n  - id: q1\n    name: One\n    description: first\n    sql: SELECT 1\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cat.Len() != 1 {
		t.Fatalf("Len() = %d", cat.Len())
	}
	entry, err := cat.Lookup("q1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", entry.SQL)
	}
}

func TestListPreservesFileOrder(t *testing.T) {
	cat, err := Parse([]byte("queries:\n  - id: b\n    sql: SELECT 2\n  - id: a\n    sql: SELECT 1\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	entries := cat.List()
	if len(entries) != 2 {
		t.Fatalf("List() len = %d", len(entries))
	}
	if entries[0].ID != "b" || entries[1].ID != "a" {
		t.Fatalf("List() order = %q, %q", entries[0].ID, entries[1].ID)
	}
	if entries[0].DisplayName != "b" {
		t.Fatalf("missing display name fallback: %q", entries[0].DisplayName)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"no queries":   "queries: []\n",
		"missing id":   "queries:\n  - sql: SELECT 1\n",
		"empty sql":    "queries:\n  - id: q1\n    sql: \"\"\n",
		"duplicate id": "queries:\n  - id: q1\n    sql: SELECT 1\n  - id: q1\n    sql: SELECT 2\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: Parse() should fail", name)
		}
	}
}
