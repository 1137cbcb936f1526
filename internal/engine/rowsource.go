package engine

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-datasync/internal/dialect"
	"db-datasync/internal/literal"

	"go.uber.org/multierr"
)

// presentColumn marks the side of a full outer join a row came from.
const presentColumn = "__sync_present"

// PairedRow is one key value seen on either side. Source and Target are
// aligned with SyncTable.Columns and are nil on the side the row is missing.
type PairedRow struct {
	Source   []any
	Target   []any
	InSource bool
	InTarget bool
}

// RowSource yields the paired rows of a table in any order.
type RowSource interface {
	Each(ctx context.Context, t *SyncTable, fn func(PairedRow) error) error
}

// ---------------------------------------------------------------------
// Server-side join
// ---------------------------------------------------------------------

// JoinRowSource pairs rows with a single FULL OUTER JOIN issued on the
// target connection. The source database must be reachable from the target
// server by three-part name.
type JoinRowSource struct {
	DB             *sql.DB
	Dialect        dialect.Dialect
	SourceDatabase string
}

// Query returns the join statement used for t.
func (s *JoinRowSource) Query(t *SyncTable) string {
	d := s.Dialect
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	// derived tables need named columns, so variant properties are read outside
	inner := "SELECT 1 AS " + d.QuoteName(presentColumn) + ", " + strings.Join(dialect.QuoteAll(d, names), ", ")

	var on []string
	for _, k := range t.Keys {
		sc, tc := "s."+k.Quoted, "t."+k.Quoted
		if k.DataType.IsCharacter() {
			coll := " COLLATE " + d.BinaryCollation()
			on = append(on, fmt.Sprintf("(%s%s = %s%s OR (%s IS NULL AND %s IS NULL))", sc, coll, tc, coll, sc, tc))
			continue
		}
		on = append(on, fmt.Sprintf("(%s = %s OR (%s IS NULL AND %s IS NULL))", sc, tc, sc, tc))
	}

	cols := []string{"s." + d.QuoteName(presentColumn), "t." + d.QuoteName(presentColumn)}
	cols = append(cols, selectList("s", t.Columns)...)
	cols = append(cols, selectList("t", t.Columns)...)

	return fmt.Sprintf("SELECT %s FROM (%s FROM %s.%s) AS s FULL OUTER JOIN (%s FROM %s) AS t ON %s",
		strings.Join(cols, ", "),
		inner, d.QuoteName(s.SourceDatabase), t.Name,
		inner, t.Name,
		dialect.JoinPredicates(on))
}

func (s *JoinRowSource) Each(ctx context.Context, t *SyncTable, fn func(PairedRow) error) (err error) {
	rows, err := s.DB.QueryContext(ctx, s.Query(t))
	if err != nil {
		return &ConnectivityError{Table: t.FullName(), Op: "failed to query paired rows", Err: err}
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	width := sideWidth(t.Columns)
	raw := make([]any, 2+2*width)
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return &ConnectivityError{Table: t.FullName(), Op: "failed to scan paired row", Err: err}
		}
		row := PairedRow{InSource: raw[0] != nil, InTarget: raw[1] != nil}
		if row.InSource {
			row.Source = decodeSide(t.Columns, raw[2:2+width])
		}
		if row.InTarget {
			row.Target = decodeSide(t.Columns, raw[2+width:])
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &ConnectivityError{Table: t.FullName(), Op: "failed to read paired rows", Err: err}
	}
	return nil
}

// ---------------------------------------------------------------------
// Client-side hash join
// ---------------------------------------------------------------------

// HashRowSource reads both sides over separate connections and pairs rows
// in memory by their encoded key. The whole target table is held in memory.
type HashRowSource struct {
	Source *sql.DB
	Target *sql.DB
}

type hashedRow struct {
	values  []any
	matched bool
}

func (s *HashRowSource) Each(ctx context.Context, t *SyncTable, fn func(PairedRow) error) error {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectList("", t.Columns), ", "), t.Name)

	var targets []*hashedRow
	byKey := make(map[string][]*hashedRow)
	err := scanSide(ctx, s.Target, query, t, func(values []any) error {
		key, err := t.keyString(values)
		if err != nil {
			return err
		}
		r := &hashedRow{values: values}
		targets = append(targets, r)
		byKey[key] = append(byKey[key], r)
		return nil
	})
	if err != nil {
		return err
	}

	err = scanSide(ctx, s.Source, query, t, func(values []any) error {
		key, err := t.keyString(values)
		if err != nil {
			return err
		}
		row := PairedRow{Source: values, InSource: true}
		for _, r := range byKey[key] {
			if !r.matched {
				r.matched = true
				row.Target, row.InTarget = r.values, true
				break
			}
		}
		return fn(row)
	})
	if err != nil {
		return err
	}

	for _, r := range targets {
		if r.matched {
			continue
		}
		if err := fn(PairedRow{Target: r.values, InTarget: true}); err != nil {
			return err
		}
	}
	return nil
}

func scanSide(ctx context.Context, db *sql.DB, query string, t *SyncTable, fn func([]any) error) (err error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return &ConnectivityError{Table: t.FullName(), Op: "failed to query rows", Err: err}
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	raw := make([]any, sideWidth(t.Columns))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return &ConnectivityError{Table: t.FullName(), Op: "failed to scan row", Err: err}
		}
		if err := fn(decodeSide(t.Columns, raw)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &ConnectivityError{Table: t.FullName(), Op: "failed to read rows", Err: err}
	}
	return nil
}

// keyString joins the key literals of a row. String literals are quoted, so
// the joined form stays unambiguous. Character keys drop trailing spaces,
// matching the server's padded comparison used by the join.
func (t *SyncTable) keyString(values []any) (string, error) {
	parts := make([]string, len(t.keyPos))
	for i, p := range t.keyPos {
		c := t.Columns[p]
		v := values[p]
		if c.DataType.IsCharacter() {
			v = trimPadding(v)
		}
		s, err := literal.Encode(v, c.DataType)
		if err != nil {
			return "", fmt.Errorf("failed to encode key %s.%s: %w", t.FullName(), c.Name, err)
		}
		parts[i] = s
	}
	return strings.Join(parts, "\x00"), nil
}

func trimPadding(v any) any {
	switch x := v.(type) {
	case string:
		return strings.TrimRight(x, " ")
	case []byte:
		return bytes.TrimRight(x, " ")
	}
	return v
}

// ---------------------------------------------------------------------
// Column lists
// ---------------------------------------------------------------------

var variantProperties = []struct {
	name string
	cast string
}{
	{"BaseType", "nvarchar(128)"},
	{"Precision", "int"},
	{"Scale", "int"},
	{"Collation", "nvarchar(128)"},
	{"MaxLength", "int"},
}

// selectList renders the select expressions for cols. A sql_variant column
// is followed by its base type properties.
func selectList(alias string, cols []*SyncColumn) []string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	var out []string
	for _, c := range cols {
		ref := prefix + c.Quoted
		out = append(out, ref)
		if c.DataType != literal.TypeSQLVariant {
			continue
		}
		for _, p := range variantProperties {
			out = append(out, fmt.Sprintf("CAST(SQL_VARIANT_PROPERTY(%s, '%s') AS %s)", ref, p.name, p.cast))
		}
	}
	return out
}

func sideWidth(cols []*SyncColumn) int {
	n := 0
	for _, c := range cols {
		n++
		if c.DataType == literal.TypeSQLVariant {
			n += len(variantProperties)
		}
	}
	return n
}

// decodeSide folds the scanned values of one side back into one value per
// column.
func decodeSide(cols []*SyncColumn, raw []any) []any {
	out := make([]any, len(cols))
	i := 0
	for n, c := range cols {
		v := raw[i]
		i++
		if c.DataType != literal.TypeSQLVariant {
			out[n] = v
			continue
		}
		props := raw[i : i+len(variantProperties)]
		i += len(variantProperties)
		if v == nil {
			continue
		}
		out[n] = literal.Variant{
			Value:     v,
			BaseType:  asString(props[0]),
			Precision: asInt(props[1]),
			Scale:     asInt(props[2]),
			Collation: asString(props[3]),
			MaxLength: asInt(props[4]),
		}
	}
	return out
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func asInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int32:
		return int(x)
	case int:
		return x
	}
	return 0
}
