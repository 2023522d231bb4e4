// Package catalog holds the named-query catalog: a read-only mapping from a
// short id to a predefined SQL template. The catalog is built once at startup
// and never mutated afterwards; changing it requires a restart.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("catalog: named query not found")

//go:embed queries.yaml
var defaultCatalogFS embed.FS

type NamedQuery struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"name"`
	Description string `yaml:"description"`
	SQL         string `yaml:"sql"`
}

type Catalog struct {
	entries map[string]NamedQuery
	order   []string
}

// Load builds the catalog from the YAML file at path, or from the embedded
// default catalog when path is empty.
func Load(path string) (*Catalog, error) {
	var raw []byte
	var err error
	if strings.TrimSpace(path) == "" {
		raw, err = defaultCatalogFS.ReadFile("queries.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog: %w", err)
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file %q: %w", path, err)
		}
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var doc struct {
		Queries []NamedQuery `yaml:"queries"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("catalog contains no queries")
	}

	catalog := &Catalog{entries: make(map[string]NamedQuery, len(doc.Queries))}
	for _, entry := range doc.Queries {
		entry.ID = strings.TrimSpace(entry.ID)
		entry.SQL = strings.TrimSpace(entry.SQL)
		if entry.ID == "" {
			return nil, fmt.Errorf("catalog entry without id")
		}
		if entry.SQL == "" {
			return nil, fmt.Errorf("catalog entry %q has empty sql", entry.ID)
		}
		if _, exists := catalog.entries[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog entry %q", entry.ID)
		}
		if entry.DisplayName == "" {
			entry.DisplayName = entry.ID
		}
		catalog.entries[entry.ID] = entry
		catalog.order = append(catalog.order, entry.ID)
	}
	return catalog, nil
}

// Lookup returns the entry for id. Unknown ids are an error, never a default.
func (c *Catalog) Lookup(id string) (NamedQuery, error) {
	entry, ok := c.entries[id]
	if !ok {
		return NamedQuery{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return entry, nil
}

// List returns all entries in catalog file order.
func (c *Catalog) List() []NamedQuery {
	entries := make([]NamedQuery, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, c.entries[id])
	}
	return entries
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
