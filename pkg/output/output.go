// Package output renders query results as a table, JSON, or CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/lflog/lflog/pkg/errors"
)

// Format selects the result rendering.
type Format string

const (
	// FormatTable renders an aligned text table.
	FormatTable Format = "table"
	// FormatJSON renders an array of row objects.
	FormatJSON Format = "json"
	// FormatCSV renders comma-separated rows with a header.
	FormatCSV Format = "csv"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "unknown output format: "+s)
	}
}

// Render drains iter and writes every row to w in the chosen format. The
// iterator is closed before returning.
func Render(w io.Writer, format Format, ctx *sql.Context, schema sql.Schema, iter sql.RowIter) error {
	defer func() {
		_ = iter.Close(ctx)
	}()

	columns := make([]string, len(schema))
	for i, col := range schema {
		columns[i] = col.Name
	}

	switch format {
	case FormatJSON:
		return renderJSON(w, ctx, columns, iter)
	case FormatCSV:
		return renderCSV(w, ctx, columns, iter)
	default:
		return renderTable(w, ctx, columns, iter)
	}
}

func renderTable(w io.Writer, ctx *sql.Context, columns []string, iter sql.RowIter) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	count := 0
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "query execution failed")
		}

		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(cells)
		count++
	}
	table.Render()
	fmt.Fprintf(w, "%d rows\n", count)
	return nil
}

func renderJSON(w io.Writer, ctx *sql.Context, columns []string, iter sql.RowIter) error {
	out := []map[string]interface{}{}
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "query execution failed")
		}

		obj := make(map[string]interface{}, len(row))
		for i, v := range row {
			obj[columns[i]] = v
		}
		out = append(out, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, ctx *sql.Context, columns []string, iter sql.RowIter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "query execution failed")
		}

		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = ""
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
