package dialect

import "db-datasync/internal/literal"

// Dialect abstracts database-specific catalog queries and script syntax.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	GetTablesQuery() string
	GetColumnsQuery() string
	GetIndexesQuery() string
	GetForeignKeysQuery() string
	GetTriggersQuery() string

	// Script framing
	ScriptHeader() []string
	BatchSeparator() string
	Print(msg string) string

	// Constraint bracketing (table is an already quoted name)
	DisableForeignKey(table, name string) string
	EnableForeignKey(table, name string, checked bool) string
	DisableIndex(table, name string) string
	RebuildIndex(table, name string) string
	DisableTrigger(table, name string) string
	EnableTrigger(table, name string) string
	IdentityInsert(table string, on bool) string

	// Query Generation
	InsertQuery(table string, cols, values []string) string
	UpdateQuery(table string, set []string, where string) string
	DeleteQuery(table string, where string) string
	ExistsQuery(table string, where string) string
	Predicate(col, value string) string

	// Helpers
	NormalizeType(sqlType string) literal.Type
	QuoteName(name string) string
	TableName(schema, table string) string
	BinaryCollation() string
}
