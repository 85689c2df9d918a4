package scan

import (
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lflog/lflog/pkg/scanner"
)

// drain collects every row of every batch as generic values.
func drain(t *testing.T, br *BatchReader) [][]interface{} {
	t.Helper()

	var rows [][]interface{}
	for {
		rec, err := br.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)

		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]interface{}, rec.NumCols())
			for c := 0; c < int(rec.NumCols()); c++ {
				col := rec.Column(c)
				if col.IsNull(r) {
					continue
				}
				switch arr := col.(type) {
				case *array.Int32:
					row[c] = arr.Value(r)
				case *array.Float64:
					row[c] = arr.Value(r)
				case *array.String:
					row[c] = arr.Value(r)
				}
			}
			rows = append(rows, row)
		}
		rec.Release()
	}
}

func singlePartition(t *testing.T, path string) Partition {
	t.Helper()
	parts, err := Plan([]string{path}, 1)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	return parts[0]
}

func TestBatchReaderBasic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log",
		"GET /x 200 1523\n"+
			"POST /y 500 99\n"+
			"garbage that does not match\n")

	sc, err := scanner.New("{{method:var_name}} {{path:any}} {{status:number}} {{bytes:number}}", nil)
	require.NoError(t, err)

	br := NewBatchReader("log", sc, singlePartition(t, path), sc.Schema(false, false), nil, 0)
	defer br.Close()

	rows := drain(t, br)
	require.Len(t, rows, 2, "non-matching line is skipped")
	assert.Equal(t, []interface{}{"GET", "/x", int32(200), int32(1523)}, rows[0])
	assert.Equal(t, []interface{}{"POST", "/y", int32(500), int32(99)}, rows[1])
}

func TestBatchReaderNoTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "a 1\na 2")

	sc, err := scanner.New("{{tag:var_name}} {{n:number}}", nil)
	require.NoError(t, err)

	br := NewBatchReader("log", sc, singlePartition(t, path), sc.Schema(false, false), nil, 0)
	defer br.Close()

	rows := drain(t, br)
	assert.Len(t, rows, 2, "file without trailing newline keeps its last line")
}

func TestBatchReaderRawCaptureStaysString(t *testing.T) {
	dir := t.TempDir()
	// 99999999999 overflows int32.
	path := writeFile(t, dir, "app.log", "x 99999999999\n")

	sc, err := scanner.New(`{{tag:var_name}} (?P<n>.*)`, nil)
	require.NoError(t, err)

	custom := sc.Schema(false, false)
	require.Equal(t, "n", custom[1].Name)

	br := NewBatchReader("log", sc, singlePartition(t, path), custom, nil, 0)
	defer br.Close()

	rows := drain(t, br)
	require.Len(t, rows, 1)
	assert.Equal(t, "99999999999", rows[0][1], "raw capture stays a string")
}

func TestBatchReaderIntOverflowNull(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "a 99999999999\nb 7\n")

	sc, err := scanner.New("{{tag:var_name}} {{n:number}}", nil)
	require.NoError(t, err)

	br := NewBatchReader("log", sc, singlePartition(t, path), sc.Schema(false, false), nil, 0)
	defer br.Close()

	rows := drain(t, br)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0][1], "unparseable integer becomes null")
	assert.Equal(t, int32(7), rows[1][1])
}

func TestBatchReaderProjection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "GET /x 200 1523\n")

	sc, err := scanner.New("{{method:var_name}} {{path:any}} {{status:number}} {{bytes:number}}", nil)
	require.NoError(t, err)

	// status, method: projection order wins over schema order.
	br := NewBatchReader("log", sc, singlePartition(t, path), sc.Schema(false, false), []int{2, 0}, 0)
	defer br.Close()

	require.Equal(t, "status", br.Schema().Field(0).Name)
	require.Equal(t, "method", br.Schema().Field(1).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, br.Schema().Field(0).Type)

	rows := drain(t, br)
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{int32(200), "GET"}, rows[0])
}

func TestBatchReaderMetadataColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "GET 200\n")

	sc, err := scanner.New("{{method:var_name}} {{status:number}}", nil)
	require.NoError(t, err)

	part := singlePartition(t, path)
	br := NewBatchReader("log", sc, part, sc.Schema(true, true), nil, 0)
	defer br.Close()

	rows := drain(t, br)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 4)
	assert.Equal(t, part.Region.Path(), rows[0][2], "__FILE__ is the absolute path")
	assert.Equal(t, "GET 200", rows[0][3], "__RAW__ is the whole line")
}

func TestBatchReaderFlushesAtTarget(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < 10; i++ {
		content += "x 1\n"
	}
	path := writeFile(t, dir, "app.log", content)

	sc, err := scanner.New("{{tag:var_name}} {{n:number}}", nil)
	require.NoError(t, err)

	br := NewBatchReader("log", sc, singlePartition(t, path), sc.Schema(false, false), nil, 4)
	defer br.Close()

	var sizes []int64
	for {
		rec, err := br.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, rec.NumRows())
		rec.Release()
	}
	assert.Equal(t, []int64{4, 4, 2}, sizes, "full batches then a short tail")
}

func TestBatchReaderMultiPartitionEqualsSinglePartition(t *testing.T) {
	dir := t.TempDir()

	content := ""
	for i := 0; i < 20000; i++ {
		content += "req 7 some padding to push the file over the split threshold\n"
	}
	path := writeFile(t, dir, "big.log", content)

	sc, err := scanner.New("{{tag:var_name}} {{n:number}} {{rest:any}}", nil)
	require.NoError(t, err)

	countRows := func(threads int) int {
		parts, err := Plan([]string{path}, threads)
		require.NoError(t, err)
		total := 0
		for _, p := range parts {
			br := NewBatchReader("log", sc, p, sc.Schema(false, false), nil, 0)
			total += len(drain(t, br))
			br.Close()
		}
		return total
	}

	single := countRows(1)
	multi := countRows(8)
	assert.Equal(t, 20000, single)
	assert.Equal(t, single, multi, "row multiset is partitioning-invariant")
}
