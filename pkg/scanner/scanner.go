// Package scanner compiles an expanded log pattern into an immutable line
// scanner. A Scanner is constructed once per table and shared by reference
// across all partition scans; it holds the compiled regex, the ordered field
// schema, and precomputed capture-group indices.
package scanner

import (
	"regexp"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/macros"
	"github.com/lflog/lflog/pkg/types"
)

// Names of the metadata columns injected on request. SQL references quote
// them to preserve case.
const (
	MetaFileColumn = "__FILE__"
	MetaRawColumn  = "__RAW__"
)

// Scanner parses log lines with a compiled named-capture regex.
type Scanner struct {
	re         *regexp.Regexp
	fields     []types.Field
	captureIdx []int
}

// New expands pattern (with optional custom macros), compiles the resulting
// regex and resolves every field to its capture-group index.
func New(pattern string, custom []macros.CustomMacro) (*Scanner, error) {
	result, err := macros.Expand(pattern, custom)
	if err != nil {
		return nil, err
	}

	// The pattern has to match the whole line; a partial match yields no row.
	re, err := regexp.Compile(`^(?:` + result.Regex + `)$`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRegexCompile, "expanded pattern does not compile")
	}

	captureIdx := make([]int, len(result.Fields))
	for i, f := range result.Fields {
		idx := re.SubexpIndex(f.Name)
		if idx < 0 {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "field not resolved to a capture group: "+f.Name)
		}
		captureIdx[i] = idx
	}

	return &Scanner{
		re:         re,
		fields:     result.Fields,
		captureIdx: captureIdx,
	}, nil
}

// Fields returns the ordered column schema derived from the pattern,
// excluding metadata columns.
func (s *Scanner) Fields() []types.Field {
	return s.fields
}

// Regex returns the compiled regex source (the expanded pattern anchored to
// the whole line), mainly for diagnostics.
func (s *Scanner) Regex() string {
	return s.re.String()
}

// Schema returns the pattern fields followed by the enabled metadata
// columns. This is the canonical column order of the derived table.
func (s *Scanner) Schema(addFilePath, addRaw bool) []types.Field {
	out := make([]types.Field, 0, len(s.fields)+2)
	out = append(out, s.fields...)
	if addFilePath {
		out = append(out, types.Field{Name: MetaFileColumn, Type: types.TypeString})
	}
	if addRaw {
		out = append(out, types.Field{Name: MetaRawColumn, Type: types.TypeString})
	}
	return out
}

// Scan matches line against the pattern and appends one value per field to
// dst. Values are zero-copy subslices of line; a nil value means the
// optional capture group did not participate in the match. Returns false
// when the line does not match, in which case dst is returned unchanged.
func (s *Scanner) Scan(line []byte, dst [][]byte) ([][]byte, bool) {
	m := s.re.FindSubmatchIndex(line)
	if m == nil {
		return dst, false
	}

	for _, ci := range s.captureIdx {
		lo, hi := m[2*ci], m[2*ci+1]
		if lo < 0 {
			dst = append(dst, nil)
		} else {
			dst = append(dst, line[lo:hi])
		}
	}
	return dst, true
}

// ScanString is a convenience variant of Scan: values are copied out as
// strings, nil for absent groups.
func (s *Scanner) ScanString(line string) ([]*string, bool) {
	vals, ok := s.Scan([]byte(line), nil)
	if !ok {
		return nil, false
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v != nil {
			sv := string(v)
			out[i] = &sv
		}
	}
	return out, true
}
