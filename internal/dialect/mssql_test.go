package dialect_test

import (
	"testing"

	"db-datasync/internal/dialect"
	"db-datasync/internal/literal"

	"github.com/stretchr/testify/require"
)

func TestGetDialect(t *testing.T) {
	for _, driver := range []string{"sqlserver", "mssql"} {
		d, err := dialect.GetDialect(driver)
		require.NoError(t, err)
		require.IsType(t, &dialect.MSSQLDialect{}, d)
	}
	_, err := dialect.GetDialect("mysql")
	require.Error(t, err)
}

func TestMSSQLFragments(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	tbl := d.TableName("dbo", "Order]Items")
	require.Equal(t, "[dbo].[Order]]Items]", tbl)

	require.Equal(t, "ALTER TABLE [dbo].[T] NOCHECK CONSTRAINT [FK_T_P];", d.DisableForeignKey("[dbo].[T]", "FK_T_P"))
	require.Equal(t, "ALTER TABLE [dbo].[T] WITH CHECK CHECK CONSTRAINT [FK_T_P];", d.EnableForeignKey("[dbo].[T]", "FK_T_P", true))
	require.Equal(t, "ALTER TABLE [dbo].[T] WITH NOCHECK CHECK CONSTRAINT [FK_T_P];", d.EnableForeignKey("[dbo].[T]", "FK_T_P", false))
	require.Equal(t, "ALTER INDEX [UX] ON [dbo].[T] DISABLE;", d.DisableIndex("[dbo].[T]", "UX"))
	require.Equal(t, "ALTER INDEX [UX] ON [dbo].[T] REBUILD;", d.RebuildIndex("[dbo].[T]", "UX"))
	require.Equal(t, "DISABLE TRIGGER [trg] ON [dbo].[T];", d.DisableTrigger("[dbo].[T]", "trg"))
	require.Equal(t, "ENABLE TRIGGER [trg] ON [dbo].[T];", d.EnableTrigger("[dbo].[T]", "trg"))
	require.Equal(t, "SET IDENTITY_INSERT [dbo].[T] ON;", d.IdentityInsert("[dbo].[T]", true))
	require.Equal(t, "PRINT 'Deleting 2 row(s) from ''x''...'", d.Print("Deleting 2 row(s) from 'x'..."))

	require.Equal(t, "[ID] IS NULL", d.Predicate("[ID]", literal.Null))
	require.Equal(t, "[ID] = 1", d.Predicate("[ID]", "1"))
	require.Equal(t, "1 = 1", dialect.JoinPredicates(nil))

	require.Equal(t,
		"INSERT INTO [dbo].[TestTable1] ([ID],[Value]) VALUES (1,'one');",
		d.InsertQuery("[dbo].[TestTable1]", dialect.QuoteAll(d, []string{"ID", "Value"}), []string{"1", "'one'"}))
	require.Equal(t,
		"UPDATE [dbo].[TestTable1] SET [Value] = 'uno' WHERE [ID] = 1;",
		d.UpdateQuery("[dbo].[TestTable1]", []string{"[Value] = 'uno'"}, "[ID] = 1"))
	require.Equal(t, literal.TypeNVarChar, d.NormalizeType("sysname"))
}
