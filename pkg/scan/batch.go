package scan

import (
	"bytes"
	"io"
	"strconv"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/lflog/lflog/pkg/metrics"
	"github.com/lflog/lflog/pkg/scanner"
	stringpool "github.com/lflog/lflog/pkg/strings"
	"github.com/lflog/lflog/pkg/types"
)

// BatchReader streams Arrow record batches out of a single partition. It
// iterates lines in file byte order, parses each with the shared scanner,
// and appends projected values to columnar builders. Lines that do not
// match the pattern are counted and dropped.
type BatchReader struct {
	table    string
	sc       *scanner.Scanner
	part     Partition
	full     []types.Field
	cols     []int
	fields   []types.Field
	schema   *arrow.Schema
	builder  *array.RecordBuilder
	npattern int

	off     int64
	rows    int
	target  int
	scratch [][]byte
	done    bool

	closeOnce sync.Once
}

// NewBatchReader creates a reader over one partition. full is the table's
// canonical schema (pattern fields followed by enabled metadata columns);
// projection selects output columns by index into full, nil meaning all.
func NewBatchReader(table string, sc *scanner.Scanner, part Partition, full []types.Field, projection []int, batchRows int) *BatchReader {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}

	cols := projection
	if cols == nil {
		cols = make([]int, len(full))
		for i := range full {
			cols[i] = i
		}
	}

	fields := make([]types.Field, len(cols))
	arrowFields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = full[c]
		arrowFields[i] = arrow.Field{
			Name:     full[c].Name,
			Type:     full[c].Type.ArrowType(),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(arrowFields, nil)

	return &BatchReader{
		table:    table,
		sc:       sc,
		part:     part,
		full:     full,
		cols:     cols,
		fields:   fields,
		schema:   schema,
		builder:  array.NewRecordBuilder(memory.NewGoAllocator(), schema),
		npattern: len(sc.Fields()),
		off:      part.Start,
		target:   batchRows,
	}
}

// Schema returns the projected Arrow schema of emitted batches.
func (b *BatchReader) Schema() *arrow.Schema {
	return b.schema
}

// Next returns the next record batch, or io.EOF when the partition is
// exhausted. The caller owns the returned record and must Release it.
func (b *BatchReader) Next() (arrow.Record, error) {
	if b.done {
		return nil, io.EOF
	}

	data := b.part.Region.Data()
	scanned, matched := 0, 0
	for b.off < b.part.End {
		var line []byte
		if nl := bytes.IndexByte(data[b.off:b.part.End], '\n'); nl < 0 {
			line = data[b.off:b.part.End]
			b.off = b.part.End
		} else {
			line = data[b.off : b.off+int64(nl)]
			b.off += int64(nl) + 1
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		scanned++
		vals, ok := b.sc.Scan(line, b.scratch[:0])
		b.scratch = vals
		if !ok {
			continue
		}
		matched++

		b.appendRow(vals, line)
		b.rows++
		if b.rows >= b.target {
			b.recordLineStats(scanned, matched)
			return b.flush(), nil
		}
	}

	b.done = true
	b.recordLineStats(scanned, matched)
	if b.rows > 0 {
		return b.flush(), nil
	}
	return nil, io.EOF
}

// Close stops the reader and releases its partition's region reference.
// Safe to call more than once.
func (b *BatchReader) Close() {
	b.done = true
	b.closeOnce.Do(func() {
		b.builder.Release()
		_ = b.part.Region.Release()
	})
}

func (b *BatchReader) appendRow(vals [][]byte, line []byte) {
	for i, c := range b.cols {
		var v []byte
		switch {
		case c < b.npattern:
			v = vals[c]
		case b.full[c].Name == scanner.MetaFileColumn:
			v = stringpool.StringToBytes(b.part.Region.Path())
		default: // __RAW__
			v = line
		}

		switch b.fields[i].Type {
		case types.TypeInt:
			bldr := b.builder.Field(i).(*array.Int32Builder)
			if v == nil {
				bldr.AppendNull()
				break
			}
			n, err := strconv.ParseInt(stringpool.BytesToString(v), 10, 32)
			if err != nil {
				bldr.AppendNull()
				break
			}
			bldr.Append(int32(n))

		case types.TypeFloat:
			bldr := b.builder.Field(i).(*array.Float64Builder)
			if v == nil {
				bldr.AppendNull()
				break
			}
			f, err := strconv.ParseFloat(stringpool.BytesToString(v), 64)
			if err != nil {
				bldr.AppendNull()
				break
			}
			bldr.Append(f)

		default:
			bldr := b.builder.Field(i).(*array.StringBuilder)
			if v == nil && c < b.npattern {
				bldr.AppendNull()
				break
			}
			// The builder copies, so the batch owns its bytes and
			// outlives the mapping.
			bldr.Append(string(v))
		}
	}
}

func (b *BatchReader) flush() arrow.Record {
	rec := b.builder.NewRecord()
	b.rows = 0
	metrics.BatchesEmitted.WithLabelValues(b.table).Inc()
	return rec
}

func (b *BatchReader) recordLineStats(scanned, matched int) {
	if scanned == 0 {
		return
	}
	metrics.LinesScanned.WithLabelValues(b.table).Add(float64(scanned))
	metrics.LinesMatched.WithLabelValues(b.table).Add(float64(matched))
	metrics.LinesSkipped.WithLabelValues(b.table).Add(float64(scanned - matched))
}
