package logtable_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/sql"
	gmstypes "github.com/dolthub/go-mysql-server/sql/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lflog/lflog/pkg/logtable"
	"github.com/lflog/lflog/pkg/scanner"
)

const apachePattern = `^\[{{time:datetime("%a %b %d %H:%M:%S %Y")}}\] \[{{level:var_name}}\] {{message:any}}$`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newEngine(t *testing.T, tables ...sql.Table) *sqle.Engine {
	t.Helper()
	db := logtable.NewDatabase("lflog")
	for _, tbl := range tables {
		require.NoError(t, db.AddTable(tbl))
	}
	return sqle.NewDefault(logtable.NewProvider(db))
}

func newCtx() *sql.Context {
	ctx := sql.NewContext(context.Background(), sql.WithSession(sql.NewBaseSession()))
	ctx.SetCurrentDatabase("lflog")
	return ctx
}

func mustQuery(t *testing.T, e *sqle.Engine, q string) []sql.Row {
	t.Helper()
	ctx := newCtx()
	_, iter, err := e.Query(ctx, q)
	require.NoError(t, err)

	var rows []sql.Row
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, iter.Close(ctx))
	return rows
}

func newTable(t *testing.T, name, pattern string, paths []string, opts logtable.Options) *logtable.Table {
	t.Helper()
	sc, err := scanner.New(pattern, nil)
	require.NoError(t, err)
	return logtable.New(name, sc, paths, opts)
}

func TestApacheErrorLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "apache.log",
		"[Sun Dec 04 04:47:44 2005] [error] mod_jk child workerEnv in error state 6\n")

	e := newEngine(t, newTable(t, "log", apachePattern, []string{path}, logtable.Options{}))

	rows := mustQuery(t, e, "SELECT time, level, message FROM log")
	require.Len(t, rows, 1)
	assert.Equal(t, "Sun Dec 04 04:47:44 2005", rows[0][0])
	assert.Equal(t, "error", rows[0][1])
	assert.Equal(t, "mod_jk child workerEnv in error state 6", rows[0][2])
}

func TestNumericColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "access.log", "GET /x 200 1523\n")

	e := newEngine(t, newTable(t, "log",
		"{{method:var_name}} {{path:any}} {{status:number}} {{bytes:number}}",
		[]string{path}, logtable.Options{}))

	rows := mustQuery(t, e, "SELECT method, path, status, bytes FROM log")
	require.Len(t, rows, 1)
	assert.Equal(t, "GET", rows[0][0])
	assert.Equal(t, "/x", rows[0][1])
	assert.Equal(t, int32(200), rows[0][2])
	assert.Equal(t, int32(1523), rows[0][3])

	// Numeric predicates work on the typed column.
	rows = mustQuery(t, e, "SELECT method FROM log WHERE status >= 200 AND bytes > 1000")
	require.Len(t, rows, 1)
}

func TestNonMatchingLineSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.log",
		"[Sun Dec 04 04:47:44 2005] [notice] ok\n"+
			"this line does not match at all\n")

	e := newEngine(t, newTable(t, "log", apachePattern, []string{path}, logtable.Options{}))

	rows := mustQuery(t, e, "SELECT level FROM log")
	require.Len(t, rows, 1)
	assert.Equal(t, "notice", rows[0][0])
}

func TestEnumNonMatchSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "levels.log", "DEBUG\nINFO\n")

	e := newEngine(t, newTable(t, "log", "^{{lvl:enum(INFO,WARN,ERROR)}}$",
		[]string{path}, logtable.Options{}))

	rows := mustQuery(t, e, "SELECT lvl FROM log")
	require.Len(t, rows, 1)
	assert.Equal(t, "INFO", rows[0][0])
}

func TestMetadataColumns(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", "GET 200\n")
	b := writeFile(t, dir, "b.log", "PUT 201\n")

	e := newEngine(t, newTable(t, "log", "{{method:var_name}} {{status:number}}",
		[]string{a, b}, logtable.Options{AddFilePath: true, AddRaw: true}))

	rows := mustQuery(t, e, "SELECT COUNT(DISTINCT `__FILE__`) FROM log")
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0][0])

	rows = mustQuery(t, e, "SELECT method, `__FILE__`, `__RAW__` FROM log ORDER BY method")
	require.Len(t, rows, 2)

	absA, _ := filepath.Abs(a)
	absB, _ := filepath.Abs(b)
	assert.Equal(t, "GET", rows[0][0])
	assert.Equal(t, absA, rows[0][1])
	assert.Equal(t, "GET 200", rows[0][2])
	assert.Equal(t, "PUT", rows[1][0])
	assert.Equal(t, absB, rows[1][1])
	assert.Equal(t, "PUT 201", rows[1][2])
}

func TestAggregationAcrossPartitionCounts(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < 7; i++ {
		content += "[Sun Dec 04 04:47:44 2005] [notice] fine\n"
	}
	for i := 0; i < 3; i++ {
		content += "[Sun Dec 04 04:47:45 2005] [error] broken\n"
	}
	path := writeFile(t, dir, "apache.log", content)

	for _, threads := range []int{1, 8} {
		e := newEngine(t, newTable(t, "log", apachePattern, []string{path},
			logtable.Options{Threads: threads}))

		rows := mustQuery(t, e,
			"SELECT level, COUNT(*) FROM log GROUP BY level ORDER BY level")
		require.Len(t, rows, 2)
		assert.Equal(t, "error", rows[0][0])
		assert.EqualValues(t, 3, rows[0][1])
		assert.Equal(t, "notice", rows[1][0])
		assert.EqualValues(t, 7, rows[1][1])
	}
}

func TestOrderingAndLimitHandledByEngine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nums.log", "a 3\nb 1\nc 2\n")

	e := newEngine(t, newTable(t, "log", "{{tag:var_name}} {{n:number}}",
		[]string{path}, logtable.Options{}))

	rows := mustQuery(t, e, "SELECT tag FROM log ORDER BY n DESC LIMIT 2")
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, "c", rows[1][0])
}

func TestSchemaTypes(t *testing.T) {
	tbl := newTable(t, "log", "{{n:number}} {{f:float}} {{s:any}}", nil,
		logtable.Options{AddRaw: true})

	schema := tbl.Schema()
	require.Len(t, schema, 4)
	assert.Equal(t, "n", schema[0].Name)
	assert.Equal(t, gmstypes.Int32, schema[0].Type)
	assert.Equal(t, gmstypes.Float64, schema[1].Type)
	assert.Equal(t, gmstypes.Text, schema[2].Type)
	assert.Equal(t, gmstypes.LongText, schema[3].Type)
	assert.True(t, schema[0].Nullable)
	assert.Equal(t, "log", schema[0].Source)
}

func TestProjectionPushdown(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "access.log", "GET /x 200 1523\nPUT /y 500 2\n")

	tbl := newTable(t, "log",
		"{{method:var_name}} {{path:any}} {{status:number}} {{bytes:number}}",
		[]string{path}, logtable.Options{})

	projected := tbl.WithProjections([]string{"status", "method"})
	schema := projected.Schema()
	require.Len(t, schema, 2)
	assert.Equal(t, "status", schema[0].Name)
	assert.Equal(t, "method", schema[1].Name)
	assert.Equal(t, []string{"status", "method"}, projected.(sql.ProjectedTable).Projections())

	rows := drainTable(t, projected)
	require.Len(t, rows, 2)
	assert.Equal(t, sql.Row{int32(200), "GET"}, rows[0])
	assert.Equal(t, sql.Row{int32(500), "PUT"}, rows[1])
}

func TestProjectionIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "access.log", "GET /x 200 1523\n")

	tbl := newTable(t, "log",
		"{{method:var_name}} {{path:any}} {{status:number}} {{bytes:number}}",
		[]string{path}, logtable.Options{})

	wide := tbl.WithProjections([]string{"method", "status"}).(sql.ProjectedTable)
	narrowed := wide.WithProjections([]string{"status"})
	direct := tbl.WithProjections([]string{"status"})

	assert.Equal(t, drainTable(t, direct), drainTable(t, narrowed))
}

func TestPartitionCountReported(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < 20000; i++ {
		content += "req 7 some padding to push the file over the split threshold\n"
	}
	path := writeFile(t, dir, "big.log", content)

	tbl := newTable(t, "log", "{{tag:var_name}} {{n:number}}",
		[]string{path}, logtable.Options{Threads: 4})

	ctx := newCtx()
	iter, err := tbl.Partitions(ctx)
	require.NoError(t, err)

	count := 0
	for {
		p, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		ri, err := tbl.PartitionRows(ctx, p)
		require.NoError(t, err)
		require.NoError(t, ri.Close(ctx))
		count++
	}
	require.NoError(t, iter.Close(ctx))
	assert.Equal(t, 4, count)
}

// drainTable reads every row of every partition directly, bypassing the
// engine.
func drainTable(t *testing.T, tbl sql.Table) []sql.Row {
	t.Helper()
	ctx := newCtx()

	iter, err := tbl.Partitions(ctx)
	require.NoError(t, err)

	var rows []sql.Row
	for {
		p, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		ri, err := tbl.PartitionRows(ctx, p)
		require.NoError(t, err)
		for {
			row, err := ri.Next(ctx)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			rows = append(rows, row)
		}
		require.NoError(t, ri.Close(ctx))
	}
	require.NoError(t, iter.Close(ctx))
	return rows
}
