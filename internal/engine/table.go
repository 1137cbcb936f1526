package engine

import (
	"sort"

	"db-datasync/internal/depsort"
	"db-datasync/internal/dialect"
	"db-datasync/internal/schema"

	"golang.org/x/text/cases"
)

// SyncColumn is a compared column of a table under comparison.
type SyncColumn struct {
	*schema.Column
	Quoted     string
	IsKey      bool
	Insertable bool
	// Updatable is false for identity columns, which SQL Server never lets
	// an UPDATE write.
	Updatable  bool

	// RowsUpdated counts the rows in which this column's value differs
	// between source and target. Only the table's own diff writes it.
	RowsUpdated int
}

// SyncTable is a table taking part in one synchronization run: its matching
// key, the statements the diff produced and its relationships with the other
// changed tables.
type SyncTable struct {
	Meta      *schema.Table
	Name      string // quoted, schema-qualified
	Columns   []*SyncColumn
	Keys      []*SyncColumn
	KeySource schema.KeySource

	Deletes []string
	Updates []string
	Inserts []string

	Relationships   []*Relationship
	DependencyIndex int

	d         dialect.Dialect
	keyPos    []int
	trackRows bool
	updated   []rowImage
}

// Relationship is an enabled foreign key between two changed tables. Both
// tables hold it; a self-reference is held once.
type Relationship struct {
	ForeignKey    *schema.ForeignKey
	Primary       *SyncTable // referenced
	Foreign       *SyncTable // referencing
	ShouldDisable bool
	Reason        string
}

// rowImage keeps the new values of an updated row so that unique indexes
// can be probed for transient collisions after the diff.
type rowImage struct {
	key     []string // literals, aligned with Keys
	values  []string // literals after the update, aligned with Columns
	changed []int    // positions in Columns whose value differs
}

func (r rowImage) touches(positions []int) bool {
	for _, c := range r.changed {
		for _, p := range positions {
			if c == p {
				return true
			}
		}
	}
	return false
}

// NewSyncTable prepares a table for comparison. It returns false when the
// table has no usable key; such tables are skipped without error.
func NewSyncTable(meta *schema.Table, d dialect.Dialect) (*SyncTable, bool) {
	key := schema.ResolveKey(meta)
	if key.Source == schema.KeyNone {
		return nil, false
	}

	isKey := make(map[string]bool, len(key.Columns))
	for _, c := range key.Columns {
		isKey[c.Name] = true
	}

	t := &SyncTable{
		Meta:            meta,
		Name:            d.TableName(meta.Schema, meta.Name),
		KeySource:       key.Source,
		DependencyIndex: depsort.InProgress,
		d:               d,
	}
	for _, c := range meta.Columns {
		if c.IsExcluded() && !isKey[c.Name] {
			continue
		}
		t.Columns = append(t.Columns, &SyncColumn{
			Column:     c,
			Quoted:     d.QuoteName(c.Name),
			IsKey:      isKey[c.Name],
			Insertable: !c.IsExcluded(),
			Updatable:  !c.IsExcluded() && !c.IsIdentity,
		})
	}
	for _, kc := range key.Columns {
		for i, c := range t.Columns {
			if c.Name == kc.Name {
				t.Keys = append(t.Keys, c)
				t.keyPos = append(t.keyPos, i)
			}
		}
	}
	for _, idx := range meta.Indexes {
		if !idx.IsPrimaryKey {
			t.trackRows = true
		}
	}
	return t, true
}

// FullName is the unquoted schema-qualified name.
func (t *SyncTable) FullName() string { return t.Meta.FullName() }

// HasChanges reports whether the diff produced any statement.
func (t *SyncTable) HasChanges() bool {
	return len(t.Deletes)+len(t.Updates)+len(t.Inserts) > 0
}

// NeedsIdentityInsert reports whether the insert block writes explicit
// values into an identity column.
func (t *SyncTable) NeedsIdentityInsert() bool {
	if len(t.Inserts) == 0 {
		return false
	}
	for _, c := range t.Columns {
		if c.IsIdentity && c.Insertable {
			return true
		}
	}
	return false
}

// Column returns the compared column with the given name, or nil.
func (t *SyncTable) Column(name string) *SyncColumn {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AnyUpdated reports whether any of the named columns changed in at least
// one row.
func (t *SyncTable) AnyUpdated(names []string) bool {
	for _, n := range names {
		if c := t.Column(n); c != nil && c.RowsUpdated > 0 {
			return true
		}
	}
	return false
}

func (t *SyncTable) positions(names []string) ([]int, bool) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		found := false
		for i, c := range t.Columns {
			if c.Name == n {
				out = append(out, i)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

// Predecessors returns the changed tables this table references. It
// implements depsort.Node.
func (t *SyncTable) Predecessors() []*SyncTable {
	var preds []*SyncTable
	for _, r := range t.Relationships {
		if r.Foreign == t && r.Primary != t {
			preds = append(preds, r.Primary)
		}
	}
	return preds
}

// Link builds the relationships among the given tables from their enabled
// foreign keys. Keys to tables outside the set are ignored.
func Link(tables []*SyncTable) {
	byName := make(map[string]*SyncTable, len(tables))
	for _, t := range tables {
		byName[t.FullName()] = t
		t.Relationships = nil
	}
	for _, f := range tables {
		for _, fk := range f.Meta.ForeignKeys {
			if fk.IsDisabled {
				continue
			}
			p, ok := byName[fk.RefTableName()]
			if !ok {
				continue
			}
			r := &Relationship{ForeignKey: fk, Primary: p, Foreign: f}
			f.Relationships = append(f.Relationships, r)
			if p != f {
				p.Relationships = append(p.Relationships, r)
			}
		}
	}
}

// Order sorts tables so that referenced tables come first and records each
// table's DependencyIndex. Ties keep a case-insensitive name order.
func Order(tables []*SyncTable) []*SyncTable {
	fold := cases.Fold()
	presorted := append([]*SyncTable(nil), tables...)
	sort.SliceStable(presorted, func(i, j int) bool {
		return fold.String(presorted[i].FullName()) < fold.String(presorted[j].FullName())
	})

	ordered, index := depsort.Order(presorted)
	for _, t := range ordered {
		t.DependencyIndex = index[t]
	}
	return ordered
}
