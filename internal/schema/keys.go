package schema

import "sort"

// KeySource tells which rule chose a table's key columns.
type KeySource int

const (
	KeyNone KeySource = iota
	KeyPrimary
	KeyClusteredUnique
	KeyUniqueConstraint
	KeyUniqueIndex
	KeyIdentity
)

func (k KeySource) String() string {
	switch k {
	case KeyPrimary:
		return "primary key"
	case KeyClusteredUnique:
		return "unique clustered index"
	case KeyUniqueConstraint:
		return "unique constraint"
	case KeyUniqueIndex:
		return "unique index"
	case KeyIdentity:
		return "identity column"
	}
	return "none"
}

// Key is the resolved matching key of a table.
type Key struct {
	Columns []*Column
	Source  KeySource
	Index   string // empty for KeyIdentity and KeyNone
}

// ResolveKeyColumns returns the columns used to match source and target
// rows, or nil when the table has no usable key.
func ResolveKeyColumns(t *Table) []*Column {
	return ResolveKey(t).Columns
}

// ResolveKey picks the key by tier: primary key, unique clustered index,
// unique constraint, any unique index, then a single identity column. Within
// a tier the index whose name sorts first (ordinal, case-sensitive) wins.
// Disabled and filtered indexes never qualify since they do not guarantee
// uniqueness over every row.
func ResolveKey(t *Table) Key {
	tiers := []struct {
		source KeySource
		match  func(*Index) bool
	}{
		{KeyPrimary, func(i *Index) bool { return i.IsPrimaryKey }},
		{KeyClusteredUnique, func(i *Index) bool { return i.IsClustered }},
		{KeyUniqueConstraint, func(i *Index) bool { return i.IsUniqueConstraint }},
		{KeyUniqueIndex, func(i *Index) bool { return true }},
	}

	var usable []*Index
	for _, i := range t.Indexes {
		if !i.IsDisabled && !i.HasFilter {
			usable = append(usable, i)
		}
	}
	sort.SliceStable(usable, func(a, b int) bool { return usable[a].Name < usable[b].Name })

	for _, tier := range tiers {
		for _, idx := range usable {
			if !tier.match(idx) {
				continue
			}
			if cols := lookupColumns(t, idx.KeyColumns()); cols != nil {
				return Key{Columns: cols, Source: tier.source, Index: idx.Name}
			}
		}
	}

	var identity []*Column
	for _, c := range t.Columns {
		if c.IsIdentity {
			identity = append(identity, c)
		}
	}
	if len(identity) == 1 {
		return Key{Columns: identity, Source: KeyIdentity}
	}
	return Key{Source: KeyNone}
}

func lookupColumns(t *Table, names []string) []*Column {
	if len(names) == 0 {
		return nil
	}
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil
		}
		cols = append(cols, c)
	}
	return cols
}
