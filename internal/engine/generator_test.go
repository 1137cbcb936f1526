package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"db-datasync/internal/engine"
	"db-datasync/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

// testTable1 has a primary key on ID and a unique constraint on Value.
func testTable1() *schema.Table {
	meta := table("TestTable1", "ID int", "Value varchar")
	meta.Indexes = append(meta.Indexes, &schema.Index{
		Name:               "UQ_TestTable1_Value",
		IsUniqueConstraint: true,
		Columns:            []schema.IndexColumn{{Name: "Value"}},
	})
	return meta
}

func TestGenerateInsertScript(t *testing.T) {
	meta := testTable1()
	heap := &schema.Table{Schema: "dbo", Name: "Heap", Columns: []*schema.Column{column("X int")}}

	var calls int32
	g := &engine.Generator{
		Dialect: mssql,
		Rows:    staticRows{"dbo.TestTable1": {sourceOnly(int64(1), "one")}},
		Prober:  &fixedProber{},
		Options: engine.Options{OnProgress: func() { atomic.AddInt32(&calls, 1) }},
	}

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), []*schema.Table{meta, heap}, &buf)
	require.NoError(t, err)
	require.True(t, res.HasChanges)
	require.Equal(t, []string{"dbo.Heap"}, res.Skipped)
	require.Equal(t, 1, res.Compared)
	require.EqualValues(t, 2, calls)

	require.Equal(t, append(append([]string(nil), header...),
		"PRINT 'Inserting 1 row(s)...'",
		"INSERT INTO [dbo].[TestTable1] ([ID],[Value]) VALUES (1,'one');",
		"GO",
	), lines(buf.String()))
}

func TestGenerateUpdateScript(t *testing.T) {
	prober := &fixedProber{collides: true}
	g := &engine.Generator{
		Dialect: mssql,
		Rows:    staticRows{"dbo.TestTable1": {both(row(int64(1), "uno"), row(int64(1), "one"))}},
		Prober:  prober,
	}

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), []*schema.Table{testTable1()}, &buf)
	require.NoError(t, err)
	require.True(t, res.HasChanges)
	require.Empty(t, prober.probed, "a single updated row cannot swap values")
	require.Equal(t, []string{
		"PRINT 'Updating 1 row(s)...'",
		"UPDATE [dbo].[TestTable1] SET [Value] = 'uno' WHERE [ID] = 1;",
		"GO",
	}, lines(buf.String())[len(header):])
}

func TestGenerateIdentityKeyedTable(t *testing.T) {
	meta := &schema.Table{Schema: "dbo", Name: "Log", Columns: []*schema.Column{
		column("ID int identity"), column("Message nvarchar"),
	}}
	g := &engine.Generator{
		Dialect: mssql,
		Rows: staticRows{"dbo.Log": {
			sourceOnly(int64(1), "started"),
			sourceOnly(int64(2), "stopped"),
		}},
		Prober: &fixedProber{},
	}

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), []*schema.Table{meta}, &buf)
	require.NoError(t, err)
	require.Equal(t, schema.KeyIdentity, res.Changed[0].KeySource)
	require.Equal(t, []string{
		"PRINT 'Inserting 2 row(s)...'",
		"SET IDENTITY_INSERT [dbo].[Log] ON;",
		"INSERT INTO [dbo].[Log] ([ID],[Message]) VALUES (1,N'started');",
		"INSERT INTO [dbo].[Log] ([ID],[Message]) VALUES (2,N'stopped');",
		"GO",
		"SET IDENTITY_INSERT [dbo].[Log] OFF;",
		"GO",
	}, lines(buf.String())[len(header):])
}

func TestGenerateNoChanges(t *testing.T) {
	meta := table("People", "ID int", "Name nvarchar", "Email varchar null")

	var pairs []engine.PairedRow
	for i := 0; i < 50; i++ {
		r := row(int64(i), gofakeit.Name(), gofakeit.Email())
		pairs = append(pairs, both(r, append([]any(nil), r...)))
	}

	g := &engine.Generator{Dialect: mssql, Rows: staticRows{"dbo.People": pairs}, Prober: &fixedProber{}}
	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), []*schema.Table{meta}, &buf)
	require.NoError(t, err)
	require.False(t, res.HasChanges)
	require.Empty(t, res.Changed)
	require.Zero(t, buf.Len())
}

func TestGenerateOrdersByDependency(t *testing.T) {
	orders := table("Orders", "ID int", "CustomerID int")
	customers := table("Customers", "ID int", "Name nvarchar")
	foreignKey("FK_Orders_Customers", orders, "CustomerID", customers, "ID")

	g := &engine.Generator{
		Dialect: mssql,
		Rows: staticRows{
			"dbo.Orders":    {sourceOnly(int64(10), int64(1)), targetOnly(int64(11), int64(2))},
			"dbo.Customers": {sourceOnly(int64(1), "Ann"), targetOnly(int64(2), "Bob")},
		},
		Prober:  &fixedProber{},
		Options: engine.Options{Parallel: 1},
	}

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), []*schema.Table{orders, customers}, &buf)
	require.NoError(t, err)
	require.Len(t, res.Changed, 2)
	require.Equal(t, "dbo.Customers", res.Changed[0].FullName())
	require.True(t, res.Plan.Empty())

	require.Equal(t, []string{
		"PRINT 'Deleting 1 row(s)...'",
		"DELETE FROM [dbo].[Orders] WHERE [ID] = 11;",
		"GO",
		"PRINT 'Deleting 1 row(s)...'",
		"DELETE FROM [dbo].[Customers] WHERE [ID] = 2;",
		"GO",
		"PRINT 'Inserting 1 row(s)...'",
		"INSERT INTO [dbo].[Customers] ([ID],[Name]) VALUES (1,N'Ann');",
		"GO",
		"PRINT 'Inserting 1 row(s)...'",
		"INSERT INTO [dbo].[Orders] ([ID],[CustomerID]) VALUES (10,1);",
		"GO",
	}, lines(buf.String())[len(header):])
}

type brokenRows struct{ err error }

func (b brokenRows) Each(context.Context, *engine.SyncTable, func(engine.PairedRow) error) error {
	return b.err
}

func TestGenerateWritesNothingOnError(t *testing.T) {
	cause := &engine.ConnectivityError{Table: "dbo.T", Op: "failed to query rows", Err: errors.New("login failed")}
	g := &engine.Generator{Dialect: mssql, Rows: brokenRows{err: cause}, Prober: &fixedProber{}}

	var tables []*schema.Table
	for i := 0; i < 8; i++ {
		tables = append(tables, table(fmt.Sprintf("T%d", i), "ID int"))
	}

	var buf bytes.Buffer
	_, err := g.Generate(context.Background(), tables, &buf)
	require.Error(t, err)
	var connErr *engine.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	require.Zero(t, buf.Len())
}
