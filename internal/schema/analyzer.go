package schema

import (
	"context"
	"database/sql"
	"fmt"

	"db-datasync/internal/dialect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------
// Schema Analysis Logic
// ---------------------------------------------------------------------

// Analyze loads every user table of the connected database together with its
// columns, unique indexes, foreign keys and triggers. One query is issued per
// object kind.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect) (*Catalog, error) {
	tableMap := make(map[string]*Table)
	var tables []*Table

	lookup := func(schemaName, tableName string) *Table {
		return tableMap[schemaName+"."+tableName]
	}

	// --- Step 1: Fetch Tables ---
	err := queryEach(ctx, db, d.GetTablesQuery(), func(rows *sql.Rows) error {
		t := &Table{}
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tableMap[t.FullName()] = t
		tables = append(tables, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	// --- Step 2: Fetch Columns ---
	err = queryEach(ctx, db, d.GetColumnsQuery(), func(rows *sql.Rows) error {
		var (
			sName, tName, cName, typeName string
			maxLen, precision, scale      int
			nullable, computed, identity  bool
			collation                     sql.NullString
		)
		if err := rows.Scan(&sName, &tName, &cName, &typeName, &maxLen, &precision, &scale,
			&nullable, &computed, &identity, &collation); err != nil {
			return fmt.Errorf("failed to scan column (table: %s.%s): %w", sName, tName, err)
		}
		t := lookup(sName, tName)
		if t == nil {
			return nil
		}
		t.Columns = append(t.Columns, &Column{
			Name:       cName,
			DataType:   d.NormalizeType(typeName),
			MaxLength:  maxLen,
			Precision:  precision,
			Scale:      scale,
			IsNullable: nullable,
			IsComputed: computed,
			IsIdentity: identity,
			Collation:  collation.String,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	// --- Step 3: Fetch Unique Indexes ---
	err = queryEach(ctx, db, d.GetIndexesQuery(), func(rows *sql.Rows) error {
		var (
			sName, tName, iName, cName                string
			isPK, isUQ, clustered, disabled, filtered bool
			included, descending                      bool
		)
		if err := rows.Scan(&sName, &tName, &iName, &isPK, &isUQ, &clustered, &disabled, &filtered,
			&cName, &included, &descending); err != nil {
			return fmt.Errorf("failed to scan index (table: %s.%s): %w", sName, tName, err)
		}
		t := lookup(sName, tName)
		if t == nil {
			return nil
		}
		idx := t.Index(iName)
		if idx == nil {
			idx = &Index{
				Name:               iName,
				IsPrimaryKey:       isPK,
				IsUniqueConstraint: isUQ,
				IsClustered:        clustered,
				IsDisabled:         disabled,
				HasFilter:          filtered,
			}
			t.Indexes = append(t.Indexes, idx)
		}
		idx.Columns = append(idx.Columns, IndexColumn{Name: cName, IsIncluded: included, IsDescending: descending})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	// --- Step 4: Fetch Foreign Keys ---
	err = queryEach(ctx, db, d.GetForeignKeysQuery(), func(rows *sql.Rows) error {
		var (
			fSchema, fTable, name, rSchema, rTable, col, refCol string
			disabled, notTrusted                                bool
		)
		if err := rows.Scan(&fSchema, &fTable, &name, &rSchema, &rTable, &col, &refCol, &disabled, &notTrusted); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		t := lookup(fSchema, fTable)
		if t == nil {
			return nil
		}
		var fk *ForeignKey
		for _, existing := range t.ForeignKeys {
			if existing.Name == name {
				fk = existing
				break
			}
		}
		if fk == nil {
			fk = &ForeignKey{
				Name:         name,
				Schema:       fSchema,
				Table:        fTable,
				RefSchema:    rSchema,
				RefTable:     rTable,
				IsDisabled:   disabled,
				IsNotTrusted: notTrusted,
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
		fk.Columns = append(fk.Columns, col)
		fk.RefColumns = append(fk.RefColumns, refCol)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	// --- Step 5: Fetch Triggers ---
	err = queryEach(ctx, db, d.GetTriggersQuery(), func(rows *sql.Rows) error {
		var (
			sName, tName string
			tr           Trigger
		)
		if err := rows.Scan(&sName, &tName, &tr.Name, &tr.IsDisabled, &tr.OnInsert, &tr.OnUpdate, &tr.OnDelete); err != nil {
			return fmt.Errorf("failed to scan trigger: %w", err)
		}
		if t := lookup(sName, tName); t != nil {
			t.Triggers = append(t.Triggers, &tr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}

	zap.L().Debug("schema analyzed", zap.Int("tables", len(tables)))
	return NewCatalog(tables), nil
}

// queryEach runs query and calls fn for every row. The cursor close error is
// reported along with any scan error.
func queryEach(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error) (err error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
