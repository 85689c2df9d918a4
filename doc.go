// Package lflog exposes unstructured log files as queryable relational
// tables. A compact macro-augmented pattern like
//
//	^\[{{time:datetime("%a %b %d %H:%M:%S %Y")}}\] \[{{level:var_name}}\] {{message:any}}$
//
// is compiled into a named-capture regex plus a typed column schema, and
// arbitrary SQL runs against the matching lines of one or more files.
//
// # Architecture
//
// The pipeline has three layers:
//
// 1. Pattern compilation: pkg/macros expands {{name:kind(args)}} forms into
// regex fragments and an ordered field schema; pkg/scanner compiles the
// result once and is shared immutably by every scan task.
//
// 2. Parallel scan: pkg/scan memory-maps each input file, splits it into
// newline-aligned partitions, and streams Arrow record batches out of each
// partition with zero-copy line slicing.
//
// 3. SQL integration: pkg/logtable presents the derived schema to the
// embedded go-mysql-server engine as a partitioned table with projection
// pushdown; filtering, aggregation, ordering and limits run in the engine.
//
// The lflog binary under cmd/lflog wires these together with TOML pattern
// profiles, metadata columns (__FILE__, __RAW__), an interactive REPL, and
// table/JSON/CSV output.
package lflog
