package dialect

import (
	"fmt"
	"strings"

	"db-datasync/internal/literal"
)

type MSSQLDialect struct{}

// Catalog queries read the sys views of the connected database. Alias types
// resolve to their system base type; CLR types keep their own name.

func (d *MSSQLDialect) GetTablesQuery() string {
	return `SELECT s.name, t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name`
}

func (d *MSSQLDialect) GetColumnsQuery() string {
	return `
		SELECT
			s.name,
			t.name,
			c.name,
			CASE WHEN ty.is_user_defined = 1 AND ty.is_assembly_type = 0
				THEN TYPE_NAME(c.system_type_id) ELSE ty.name END AS TYPE_NAME,
			c.max_length,
			c.precision,
			c.scale,
			c.is_nullable,
			c.is_computed,
			c.is_identity,
			c.collation_name
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name, c.column_id
	`
}

func (d *MSSQLDialect) GetIndexesQuery() string {
	// Unique indexes only: they drive key resolution and swap detection.
	return `
		SELECT
			s.name,
			t.name,
			i.name,
			i.is_primary_key,
			i.is_unique_constraint,
			CASE WHEN i.type = 1 THEN 1 ELSE 0 END AS IS_CLUSTERED,
			i.is_disabled,
			i.has_filter,
			c.name,
			ic.is_included_column,
			ic.is_descending_key
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE t.is_ms_shipped = 0 AND i.is_unique = 1 AND i.is_hypothetical = 0
		ORDER BY s.name, t.name, i.name, ic.is_included_column, ic.key_ordinal, ic.index_column_id
	`
}

func (d *MSSQLDialect) GetForeignKeysQuery() string {
	return `
		SELECT
			fs.name,
			ft.name,
			fk.name,
			rs.name,
			rt.name,
			fc.name,
			rc.name,
			fk.is_disabled,
			fk.is_not_trusted
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables ft ON ft.object_id = fk.parent_object_id
		JOIN sys.schemas fs ON fs.schema_id = ft.schema_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns fc ON fc.object_id = fkc.parent_object_id AND fc.column_id = fkc.parent_column_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE ft.is_ms_shipped = 0
		ORDER BY fs.name, ft.name, fk.name, fkc.constraint_column_id
	`
}

func (d *MSSQLDialect) GetTriggersQuery() string {
	return `
		SELECT
			s.name,
			t.name,
			tr.name,
			tr.is_disabled,
			CAST(OBJECTPROPERTY(tr.object_id, 'ExecIsInsertTrigger') AS bit),
			CAST(OBJECTPROPERTY(tr.object_id, 'ExecIsUpdateTrigger') AS bit),
			CAST(OBJECTPROPERTY(tr.object_id, 'ExecIsDeleteTrigger') AS bit)
		FROM sys.triggers tr
		JOIN sys.tables t ON t.object_id = tr.parent_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE tr.parent_class = 1 AND t.is_ms_shipped = 0
		ORDER BY s.name, t.name, tr.name
	`
}

// ScriptHeader returns the SET options required when the script touches
// tables with filtered indexes, indexed views or computed column indexes.
func (d *MSSQLDialect) ScriptHeader() []string {
	return []string{
		"SET NUMERIC_ROUNDABORT OFF;",
		"SET ANSI_PADDING, ANSI_WARNINGS, CONCAT_NULL_YIELDS_NULL, ARITHABORT, QUOTED_IDENTIFIER, ANSI_NULLS ON;",
	}
}

func (d *MSSQLDialect) BatchSeparator() string { return "GO" }

func (d *MSSQLDialect) Print(msg string) string {
	return "PRINT " + literal.Quote(msg, false)
}

func (d *MSSQLDialect) DisableForeignKey(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT %s;", table, d.QuoteName(name))
}

func (d *MSSQLDialect) EnableForeignKey(table, name string, checked bool) string {
	// WITH CHECK validates existing rows and leaves the key trusted.
	with := "WITH NOCHECK"
	if checked {
		with = "WITH CHECK"
	}
	return fmt.Sprintf("ALTER TABLE %s %s CHECK CONSTRAINT %s;", table, with, d.QuoteName(name))
}

func (d *MSSQLDialect) DisableIndex(table, name string) string {
	return fmt.Sprintf("ALTER INDEX %s ON %s DISABLE;", d.QuoteName(name), table)
}

func (d *MSSQLDialect) RebuildIndex(table, name string) string {
	return fmt.Sprintf("ALTER INDEX %s ON %s REBUILD;", d.QuoteName(name), table)
}

func (d *MSSQLDialect) DisableTrigger(table, name string) string {
	return fmt.Sprintf("DISABLE TRIGGER %s ON %s;", d.QuoteName(name), table)
}

func (d *MSSQLDialect) EnableTrigger(table, name string) string {
	return fmt.Sprintf("ENABLE TRIGGER %s ON %s;", d.QuoteName(name), table)
}

func (d *MSSQLDialect) IdentityInsert(table string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("SET IDENTITY_INSERT %s %s;", table, state)
}

func (d *MSSQLDialect) InsertQuery(table string, cols, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table, strings.Join(cols, ","), strings.Join(values, ","))
}

func (d *MSSQLDialect) UpdateQuery(table string, set []string, where string) string {
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s;", table, strings.Join(set, ", "), where)
}

func (d *MSSQLDialect) DeleteQuery(table string, where string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", table, where)
}

func (d *MSSQLDialect) ExistsQuery(table string, where string) string {
	return fmt.Sprintf("SELECT TOP (1) 1 FROM %s WHERE %s", table, where)
}

// Predicate compares a quoted column with a literal. NULL never compares
// equal with =, so it gets IS NULL.
func (d *MSSQLDialect) Predicate(col, value string) string {
	if value == literal.Null {
		return col + " IS NULL"
	}
	return col + " = " + value
}

func (d *MSSQLDialect) NormalizeType(sqlType string) literal.Type {
	return literal.ParseType(sqlType)
}

func (d *MSSQLDialect) QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) TableName(schema, table string) string {
	if schema == "" {
		return d.QuoteName(table)
	}
	return d.QuoteName(schema) + "." + d.QuoteName(table)
}

// BinaryCollation is used to force exact comparison of character keys.
func (d *MSSQLDialect) BinaryCollation() string {
	return "Latin1_General_BIN2"
}
