// Package types defines the field type model shared by the macro expander,
// the scanner, and the batch layer. Every field extracted from a log pattern
// carries exactly one FieldType, and every FieldType maps to exactly one
// Arrow storage type.
package types

import (
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/lflog/lflog/pkg/errors"
)

// FieldType is the semantic type of a column derived from a log pattern.
type FieldType int

const (
	// TypeString is free-form UTF-8 text.
	TypeString FieldType = iota
	// TypeInt is a 32-bit signed integer.
	TypeInt
	// TypeFloat is a 64-bit float.
	TypeFloat
	// TypeDateTime is a timestamp stored as its original string. The
	// strftime formats used to match it are retained as metadata.
	TypeDateTime
	// TypeEnum is one of a fixed set of string values.
	TypeEnum
	// TypeJSON is an embedded JSON document stored as a string.
	TypeJSON
)

// String returns the config-file spelling of the type.
func (t FieldType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDateTime:
		return "datetime"
	case TypeEnum:
		return "enum"
	case TypeJSON:
		return "json"
	default:
		return "string"
	}
}

// ParseFieldType parses a type hint string as used in config files.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return TypeString, nil
	case "int", "integer", "number":
		return TypeInt, nil
	case "float", "double":
		return TypeFloat, nil
	case "datetime", "timestamp", "ts":
		return TypeDateTime, nil
	case "enum":
		return TypeEnum, nil
	case "json":
		return TypeJSON, nil
	default:
		return TypeString, errors.New(errors.ErrorTypeConfig, "unknown type hint: "+s)
	}
}

// ArrowType returns the Arrow storage type for the field type. DateTime,
// Enum and JSON values are stored as strings; their extra semantics ride on
// the Field metadata, not on the storage representation.
func (t FieldType) ArrowType() arrow.DataType {
	switch t {
	case TypeInt:
		return arrow.PrimitiveTypes.Int32
	case TypeFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// Field is a named, typed column derived from a pattern. The order of fields
// follows the lexical order of macros (and raw named captures) in the pattern.
type Field struct {
	Name string
	Type FieldType

	// Formats holds the strftime format strings for TypeDateTime fields.
	Formats []string
	// EnumValues holds the allowed values for TypeEnum fields.
	EnumValues []string
}

// DateTime exposes the retained format metadata of a datetime field.
type DateTime struct {
	Formats []string
}

// ParseMicros parses value against the retained formats and returns the UTC
// timestamp in microseconds. Returns false when no format matches.
func (d DateTime) ParseMicros(value string) (int64, bool) {
	for _, f := range d.Formats {
		layout, err := StrftimeToLayout(f)
		if err != nil {
			continue
		}
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC().UnixMicro(), true
		}
	}
	return 0, false
}

// strftime directives that have a Go reference-time equivalent.
var layoutDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'f': ".000000",
	'z': "-0700",
	'Z': "MST",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'%': "%",
}

// StrftimeToLayout translates a strftime format string into a Go time layout.
func StrftimeToLayout(format string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", errors.New(errors.ErrorTypePattern, "incomplete datetime format string: ends with %")
		}
		rep, ok := layoutDirectives[format[i]]
		if !ok {
			return "", errors.New(errors.ErrorTypePattern, "unsupported datetime directive: %"+string(format[i]))
		}
		out.WriteString(rep)
	}
	return out.String(), nil
}
