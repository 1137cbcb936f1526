package engine_test

import (
	"context"
	"strings"

	"db-datasync/internal/dialect"
	"db-datasync/internal/engine"
	"db-datasync/internal/literal"
	"db-datasync/internal/schema"
)

var mssql = &dialect.MSSQLDialect{}

// staticRows serves fixed paired rows per table.
type staticRows map[string][]engine.PairedRow

func (s staticRows) Each(_ context.Context, t *engine.SyncTable, fn func(engine.PairedRow) error) error {
	for _, r := range s[t.FullName()] {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func row(vals ...any) []any { return vals }

func both(src, tgt []any) engine.PairedRow {
	return engine.PairedRow{Source: src, Target: tgt, InSource: true, InTarget: true}
}

func sourceOnly(vals ...any) engine.PairedRow {
	return engine.PairedRow{Source: vals, InSource: true}
}

func targetOnly(vals ...any) engine.PairedRow {
	return engine.PairedRow{Target: vals, InTarget: true}
}

// fixedProber answers every probe the same way and records what it saw.
type fixedProber struct {
	collides bool
	probed   []string
}

func (p *fixedProber) UniqueMismatch(_ context.Context, t *engine.SyncTable, idx *schema.Index) (bool, error) {
	p.probed = append(p.probed, t.FullName()+"."+idx.Name)
	return p.collides, nil
}

// column parses "Name type" with an optional trailing "null" or "identity".
func column(def string) *schema.Column {
	f := strings.Fields(def)
	c := &schema.Column{Name: f[0], DataType: literal.ParseType(f[1])}
	for _, opt := range f[2:] {
		switch opt {
		case "null":
			c.IsNullable = true
		case "identity":
			c.IsIdentity = true
		case "computed":
			c.IsComputed = true
		}
	}
	return c
}

// table builds dbo.<name> with a clustered primary key on the first column.
func table(name string, defs ...string) *schema.Table {
	t := &schema.Table{Schema: "dbo", Name: name}
	for _, d := range defs {
		t.Columns = append(t.Columns, column(d))
	}
	t.Indexes = append(t.Indexes, &schema.Index{
		Name:         "PK_" + name,
		IsPrimaryKey: true,
		IsClustered:  true,
		Columns:      []schema.IndexColumn{{Name: t.Columns[0].Name}},
	})
	return t
}

func foreignKey(name string, from *schema.Table, col string, to *schema.Table, refCol string) *schema.ForeignKey {
	fk := &schema.ForeignKey{
		Name:       name,
		Schema:     from.Schema,
		Table:      from.Name,
		Columns:    []string{col},
		RefSchema:  to.Schema,
		RefTable:   to.Name,
		RefColumns: []string{refCol},
	}
	from.ForeignKeys = append(from.ForeignKeys, fk)
	to.ReferencedBy = append(to.ReferencedBy, fk)
	return fk
}

func syncTable(meta *schema.Table) *engine.SyncTable {
	st, ok := engine.NewSyncTable(meta, mssql)
	if !ok {
		panic("table has no key: " + meta.FullName())
	}
	return st
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
