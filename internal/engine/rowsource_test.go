package engine_test

import (
	"context"
	"testing"

	"db-datasync/internal/engine"
	"db-datasync/internal/literal"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, src engine.RowSource, st *engine.SyncTable) []engine.PairedRow {
	t.Helper()
	var out []engine.PairedRow
	require.NoError(t, src.Each(context.Background(), st, func(r engine.PairedRow) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestJoinRowSourceQuery(t *testing.T) {
	st := syncTable(table("Codes", "Code varchar", "Label nvarchar null"))
	src := &engine.JoinRowSource{Dialect: mssql, SourceDatabase: "Staging"}

	require.Equal(t,
		"SELECT s.[__sync_present], t.[__sync_present], s.[Code], s.[Label], t.[Code], t.[Label] "+
			"FROM (SELECT 1 AS [__sync_present], [Code], [Label] FROM [Staging].[dbo].[Codes]) AS s "+
			"FULL OUTER JOIN (SELECT 1 AS [__sync_present], [Code], [Label] FROM [dbo].[Codes]) AS t "+
			"ON (s.[Code] COLLATE Latin1_General_BIN2 = t.[Code] COLLATE Latin1_General_BIN2 "+
			"OR (s.[Code] IS NULL AND t.[Code] IS NULL))",
		src.Query(st))
}

func TestJoinRowSourceEach(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	st := syncTable(table("TestTable1", "ID int", "Value varchar"))
	src := &engine.JoinRowSource{DB: db, Dialect: mssql, SourceDatabase: "src"}

	mock.ExpectQuery(src.Query(st)).WillReturnRows(
		sqlmock.NewRows([]string{"sp", "tp", "sid", "sval", "tid", "tval"}).
			AddRow(int64(1), nil, int64(1), "one", nil, nil).
			AddRow(int64(1), int64(1), int64(2), "uno", int64(2), "two").
			AddRow(nil, int64(1), nil, nil, int64(3), "three"))

	changed, err := engine.Diff(context.Background(), st, src)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, []string{"INSERT INTO [dbo].[TestTable1] ([ID],[Value]) VALUES (1,'one');"}, st.Inserts)
	require.Equal(t, []string{"UPDATE [dbo].[TestTable1] SET [Value] = 'uno' WHERE [ID] = 2;"}, st.Updates)
	require.Equal(t, []string{"DELETE FROM [dbo].[TestTable1] WHERE [ID] = 3;"}, st.Deletes)
}

func TestJoinRowSourceQueryError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	st := syncTable(table("T", "ID int"))
	src := &engine.JoinRowSource{DB: db, Dialect: mssql, SourceDatabase: "src"}
	mock.ExpectQuery(src.Query(st)).WillReturnError(context.DeadlineExceeded)

	err = src.Each(context.Background(), st, func(engine.PairedRow) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var connErr *engine.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "dbo.T", connErr.Table)
}

func TestHashRowSourceWithVariant(t *testing.T) {
	source, sourceMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer source.Close()
	target, targetMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer target.Close()

	st := syncTable(table("Settings", "ID int", "V sql_variant null"))
	query := "SELECT [ID], [V], " +
		"CAST(SQL_VARIANT_PROPERTY([V], 'BaseType') AS nvarchar(128)), " +
		"CAST(SQL_VARIANT_PROPERTY([V], 'Precision') AS int), " +
		"CAST(SQL_VARIANT_PROPERTY([V], 'Scale') AS int), " +
		"CAST(SQL_VARIANT_PROPERTY([V], 'Collation') AS nvarchar(128)), " +
		"CAST(SQL_VARIANT_PROPERTY([V], 'MaxLength') AS int) " +
		"FROM [dbo].[Settings]"
	cols := []string{"ID", "V", "bt", "p", "s", "c", "m"}

	targetMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).
		AddRow(int64(1), int64(6), "int", int64(10), int64(0), nil, int64(4)).
		AddRow(int64(2), "x", "varchar", int64(0), int64(0), "Latin1_General_CI_AS", int64(1)))
	sourceMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).
		AddRow(int64(1), int64(5), "int", int64(10), int64(0), nil, int64(4)).
		AddRow(int64(3), nil, nil, nil, nil, nil, nil))

	src := &engine.HashRowSource{Source: source, Target: target}
	rows := collect(t, src, st)
	require.Len(t, rows, 3)
	require.True(t, rows[0].InSource && rows[0].InTarget)
	require.Equal(t, literal.Variant{Value: int64(5), BaseType: "int", Precision: 10, MaxLength: 4}, rows[0].Source[1])
	require.Nil(t, rows[1].Source[1], "NULL variant")
	require.False(t, rows[2].InSource)

	sourceMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).
		AddRow(int64(1), int64(5), "int", int64(10), int64(0), nil, int64(4)).
		AddRow(int64(3), nil, nil, nil, nil, nil, nil))
	targetMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).
		AddRow(int64(1), int64(6), "int", int64(10), int64(0), nil, int64(4)).
		AddRow(int64(2), "x", "varchar", int64(0), int64(0), "Latin1_General_CI_AS", int64(1)))

	_, err = engine.Diff(context.Background(), st, src)
	require.NoError(t, err)
	require.Equal(t, []string{"UPDATE [dbo].[Settings] SET [V] = CAST(CAST(5 AS int) AS sql_variant) WHERE [ID] = 1;"}, st.Updates)
	require.Equal(t, []string{"INSERT INTO [dbo].[Settings] ([ID],[V]) VALUES (3,NULL);"}, st.Inserts)
	require.Equal(t, []string{"DELETE FROM [dbo].[Settings] WHERE [ID] = 2;"}, st.Deletes)
	require.NoError(t, sourceMock.ExpectationsWereMet())
	require.NoError(t, targetMock.ExpectationsWereMet())
}

func TestHashRowSourceIgnoresKeyPadding(t *testing.T) {
	source, sourceMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer source.Close()
	target, targetMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer target.Close()

	st := syncTable(table("Codes", "Code varchar", "Name nvarchar"))
	query := "SELECT [Code], [Name] FROM [dbo].[Codes]"
	cols := []string{"Code", "Name"}
	targetMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).AddRow("a  ", "x").AddRow("b", "y"))
	sourceMock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(cols).AddRow("a", "z").AddRow("b ", "y"))

	_, err = engine.Diff(context.Background(), st, &engine.HashRowSource{Source: source, Target: target})
	require.NoError(t, err)
	require.Equal(t, []string{"UPDATE [dbo].[Codes] SET [Name] = N'z' WHERE [Code] = 'a  ';"}, st.Updates)
	require.Empty(t, st.Inserts)
	require.Empty(t, st.Deletes)
	require.NoError(t, sourceMock.ExpectationsWereMet())
	require.NoError(t, targetMock.ExpectationsWereMet())
}
