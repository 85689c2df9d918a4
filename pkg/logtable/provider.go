// Package logtable integrates the scan executor with the SQL engine. A
// Table advertises the schema derived from a pattern, accepts projection
// pushdown, and hands the engine one independent batch stream per
// partition. Filters, grouping, ordering and limits are left entirely to
// the engine; the table claims projection pushdown only.
package logtable

import (
	"fmt"
	"io"
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	gmstypes "github.com/dolthub/go-mysql-server/sql/types"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/metrics"
	"github.com/lflog/lflog/pkg/scan"
	"github.com/lflog/lflog/pkg/scanner"
	"github.com/lflog/lflog/pkg/types"
)

// Options configures a log table.
type Options struct {
	// AddFilePath appends the __FILE__ metadata column.
	AddFilePath bool
	// AddRaw appends the __RAW__ metadata column.
	AddRaw bool
	// Threads is the target partition count; 0 resolves via LFLOGTHREADS
	// or the default.
	Threads int
	// BatchRows is the batch flush threshold; 0 uses the default.
	BatchRows int
}

// Table exposes a set of log files as a relational table.
type Table struct {
	name      string
	sc        *scanner.Scanner
	paths     []string
	full      []types.Field
	projected []string // nil means all columns
	opts      Options
}

var (
	_ sql.Table          = (*Table)(nil)
	_ sql.ProjectedTable = (*Table)(nil)
)

// New creates a table over the given files using the scanner's derived
// schema plus the metadata columns enabled in opts.
func New(name string, sc *scanner.Scanner, paths []string, opts Options) *Table {
	return &Table{
		name:  name,
		sc:    sc,
		paths: paths,
		full:  sc.Schema(opts.AddFilePath, opts.AddRaw),
		opts:  opts,
	}
}

// Name implements sql.Table.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) String() string {
	return t.name
}

// Collation implements sql.Table.
func (t *Table) Collation() sql.CollationID {
	return sql.Collation_Default
}

// Schema implements sql.Table. It reflects the active projection.
func (t *Table) Schema() sql.Schema {
	cols, err := t.projectionIndices()
	if err != nil {
		// An unresolvable projection surfaces when the scan starts;
		// fall back to the full schema here.
		cols = nil
	}
	if cols == nil {
		cols = allColumns(len(t.full))
	}

	schema := make(sql.Schema, len(cols))
	for i, c := range cols {
		f := t.full[c]
		schema[i] = &sql.Column{
			Name:     f.Name,
			Type:     sqlType(f),
			Nullable: true,
			Source:   t.name,
		}
	}
	return schema
}

// WithProjections implements sql.ProjectedTable.
func (t *Table) WithProjections(colNames []string) sql.Table {
	nt := *t
	nt.projected = colNames
	return &nt
}

// Projections implements sql.ProjectedTable.
func (t *Table) Projections() []string {
	return t.projected
}

// Partitions implements sql.Table. The partition count is the scan's
// parallelism level reported to the engine.
func (t *Table) Partitions(*sql.Context) (sql.PartitionIter, error) {
	parts, err := scan.Plan(t.paths, scan.Threads(t.opts.Threads))
	if err != nil {
		return nil, err
	}
	metrics.PartitionsPlanned.WithLabelValues(t.name).Add(float64(len(parts)))
	return &partitionIter{parts: parts}, nil
}

// PartitionRows implements sql.Table. Each call returns an independent
// stream of rows drained from the partition's record batches.
func (t *Table) PartitionRows(_ *sql.Context, p sql.Partition) (sql.RowIter, error) {
	lp, ok := p.(*logPartition)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "unexpected partition type %T", p)
	}

	projection, err := t.projectionIndices()
	if err != nil {
		lp.release()
		return nil, err
	}

	br := scan.NewBatchReader(t.name, t.sc, lp.part, t.full, projection, t.opts.BatchRows)
	return &rowIter{br: br}, nil
}

// projectionIndices resolves the projected column names to indices into the
// full schema, nil when no projection is set.
func (t *Table) projectionIndices() ([]int, error) {
	if t.projected == nil {
		return nil, nil
	}

	indices := make([]int, len(t.projected))
	for i, name := range t.projected {
		found := -1
		for c, f := range t.full {
			if strings.EqualFold(f.Name, name) {
				found = c
				break
			}
		}
		if found < 0 {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "projected column not in schema: "+name)
		}
		indices[i] = found
	}
	return indices, nil
}

func allColumns(n int) []int {
	cols := make([]int, n)
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// sqlType maps a field type to the engine's type vocabulary. All stringy
// types share the text storage representation; the raw line column gets the
// large variant.
func sqlType(f types.Field) sql.Type {
	switch f.Type {
	case types.TypeInt:
		return gmstypes.Int32
	case types.TypeFloat:
		return gmstypes.Float64
	default:
		if f.Name == scanner.MetaRawColumn {
			return gmstypes.LongText
		}
		return gmstypes.Text
	}
}

// logPartition wraps a scan partition as a sql.Partition.
type logPartition struct {
	part scan.Partition
}

func (p *logPartition) Key() []byte {
	return []byte(fmt.Sprintf("%s:%d-%d", p.part.Region.Path(), p.part.Start, p.part.End))
}

// release drops the partition's region reference without a reader.
func (p *logPartition) release() {
	_ = p.part.Region.Release()
}

// partitionIter hands out planned partitions one at a time.
type partitionIter struct {
	parts []scan.Partition
	pos   int
}

var _ sql.PartitionIter = (*partitionIter)(nil)

func (it *partitionIter) Next(*sql.Context) (sql.Partition, error) {
	if it.pos >= len(it.parts) {
		return nil, io.EOF
	}
	p := &logPartition{part: it.parts[it.pos]}
	it.pos++
	return p, nil
}

// Close releases partitions that were never handed out. Partitions already
// handed out are released by their row iterators.
func (it *partitionIter) Close(*sql.Context) error {
	for ; it.pos < len(it.parts); it.pos++ {
		_ = it.parts[it.pos].Region.Release()
	}
	return nil
}
