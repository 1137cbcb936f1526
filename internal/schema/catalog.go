package schema

import (
	"path/filepath"
	"strings"
)

// Catalog is the set of tables read from one database.
type Catalog struct {
	Tables []*Table
	byName map[string]*Table
}

// NewCatalog indexes tables by full name and links every foreign key to the
// table it references.
func NewCatalog(tables []*Table) *Catalog {
	c := &Catalog{Tables: tables, byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		c.byName[t.FullName()] = t
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if ref, ok := c.byName[fk.RefTableName()]; ok {
				ref.ReferencedBy = append(ref.ReferencedBy, fk)
			}
		}
	}
	return c
}

// Table looks a table up by schema and name, case-sensitively.
func (c *Catalog) Table(schemaName, name string) *Table {
	return c.byName[schemaName+"."+name]
}

// Filter returns the tables matching any include pattern (all when include is
// empty) and no exclude pattern. Patterns use filepath.Match syntax and are
// matched case-insensitively against both "schema.table" and "table".
func (c *Catalog) Filter(include, exclude []string) []*Table {
	var out []*Table
	for _, t := range c.Tables {
		if len(include) > 0 && !matchesAny(t, include) {
			continue
		}
		if matchesAny(t, exclude) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesAny(t *Table, patterns []string) bool {
	full := strings.ToLower(t.FullName())
	name := strings.ToLower(t.Name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, err := filepath.Match(p, full); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
