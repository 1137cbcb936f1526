package schema

import "db-datasync/internal/literal"

type Table struct {
	Schema       string
	Name         string
	Columns      []*Column
	Indexes      []*Index      // unique indexes, primary key included
	ForeignKeys  []*ForeignKey // keys declared on this table
	ReferencedBy []*ForeignKey // keys on any table that reference this one
	Triggers     []*Trigger
}

// FullName is the schema-qualified name used as identity. It is compared
// case-sensitively.
func (t *Table) FullName() string {
	return t.Schema + "." + t.Name
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the index with the given name, or nil.
func (t *Table) Index(name string) *Index {
	for _, i := range t.Indexes {
		if i.Name == name {
			return i
		}
	}
	return nil
}

type Column struct {
	Name       string
	DataType   literal.Type
	MaxLength  int // bytes, -1 for (max)
	Precision  int
	Scale      int
	IsNullable bool
	IsComputed bool
	IsIdentity bool
	Collation  string
}

// IsExcluded reports whether the column is left out of comparison because
// the server computes its value.
func (c *Column) IsExcluded() bool {
	return c.IsComputed || c.DataType.IsGenerated()
}

type IndexColumn struct {
	Name         string
	IsIncluded   bool
	IsDescending bool
}

type Index struct {
	Name               string
	IsPrimaryKey       bool
	IsUniqueConstraint bool
	IsClustered        bool
	IsDisabled         bool
	HasFilter          bool
	Columns            []IndexColumn
}

// KeyColumns returns the names of the indexed columns, without included ones,
// in key order.
func (i *Index) KeyColumns() []string {
	var names []string
	for _, c := range i.Columns {
		if !c.IsIncluded {
			names = append(names, c.Name)
		}
	}
	return names
}

type ForeignKey struct {
	Name         string
	Schema       string
	Table        string
	Columns      []string
	RefSchema    string
	RefTable     string
	RefColumns   []string
	IsDisabled   bool
	IsNotTrusted bool
}

// TableName is the full name of the referencing table.
func (fk *ForeignKey) TableName() string { return fk.Schema + "." + fk.Table }

// RefTableName is the full name of the referenced table.
func (fk *ForeignKey) RefTableName() string { return fk.RefSchema + "." + fk.RefTable }

// IsSelfReference reports whether the key references its own table.
func (fk *ForeignKey) IsSelfReference() bool { return fk.TableName() == fk.RefTableName() }

type Trigger struct {
	Name       string
	IsDisabled bool
	OnInsert   bool
	OnUpdate   bool
	OnDelete   bool
}
