package logtable

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/dolthub/go-mysql-server/sql"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/scan"
)

// rowIter drains record batches from one partition and yields them row by
// row to the engine. Cancellation is observed at batch boundaries: a closed
// iterator (or cancelled context) stops the underlying reader before the
// next batch is built.
type rowIter struct {
	br *scan.BatchReader

	rec arrow.Record
	pos int
}

var _ sql.RowIter = (*rowIter)(nil)

func (it *rowIter) Next(ctx *sql.Context) (sql.Row, error) {
	for it.rec == nil || it.pos >= int(it.rec.NumRows()) {
		if it.rec != nil {
			it.rec.Release()
			it.rec = nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := it.br.Next()
		if err != nil {
			return nil, err
		}
		it.rec = rec
		it.pos = 0
	}

	row := make(sql.Row, it.rec.NumCols())
	for c := 0; c < int(it.rec.NumCols()); c++ {
		col := it.rec.Column(c)
		if col.IsNull(it.pos) {
			continue
		}
		switch arr := col.(type) {
		case *array.Int32:
			row[c] = arr.Value(it.pos)
		case *array.Float64:
			row[c] = arr.Value(it.pos)
		case *array.String:
			row[c] = arr.Value(it.pos)
		default:
			return nil, errors.Newf(errors.ErrorTypeInternal, "unexpected column array %T", col)
		}
	}
	it.pos++
	return row, nil
}

func (it *rowIter) Close(*sql.Context) error {
	if it.rec != nil {
		it.rec.Release()
		it.rec = nil
	}
	it.br.Close()
	return nil
}
