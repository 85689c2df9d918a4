package macros

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/types"
)

// CustomMacro is a user-defined macro kind supplied by the configuration
// collaborator. The pattern is used verbatim as the capture body.
type CustomMacro struct {
	Name     string
	Pattern  string
	TypeHint types.FieldType
}

// Result is an expanded pattern: the full regex and the ordered column
// schema derived from it.
type Result struct {
	Regex  string
	Fields []types.Field
}

var (
	identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// Raw named captures written directly in literal pattern text.
	rawCaptureRE = regexp.MustCompile(`\(\?P<([A-Za-z_][A-Za-z0-9_]*)>`)
)

// Expand substitutes every macro in pattern with a named-capture fragment
// and derives the field schema. Custom macros take precedence over builtin
// kinds of the same name. Raw (?P<name>...) captures in literal segments are
// ingested as string fields in their lexical position.
func Expand(pattern string, custom []CustomMacro) (*Result, error) {
	segments, err := Split(pattern)
	if err != nil {
		return nil, err
	}

	customByName := make(map[string]CustomMacro, len(custom))
	for _, m := range custom {
		customByName[m.Name] = m
	}

	var out strings.Builder
	out.Grow(len(pattern))

	var fields []types.Field
	seen := make(map[string]struct{})
	autoIdx := 0

	addField := func(f types.Field) error {
		if _, dup := seen[f.Name]; dup {
			return errors.New(errors.ErrorTypeDuplicateField, "duplicate field name: "+f.Name)
		}
		seen[f.Name] = struct{}{}
		fields = append(fields, f)
		return nil
	}

	for _, seg := range segments {
		if seg.Macro == nil {
			out.WriteString(seg.Literal)
			for _, m := range rawCaptureRE.FindAllStringSubmatch(seg.Literal, -1) {
				if err := addField(types.Field{Name: m[1], Type: types.TypeString}); err != nil {
					return nil, err
				}
			}
			continue
		}

		inv := seg.Macro
		kind, name := inv.Kind, inv.Field

		// A bare {{name}} that is not a known kind is a field of kind any.
		if name == "" && len(inv.Args) == 0 && !isKnownKind(kind, customByName) && identRE.MatchString(kind) {
			name, kind = kind, "any"
		}

		expanded, err := expandKind(kind, inv.Args, customByName)
		if err != nil {
			return nil, err
		}

		if name == "" {
			autoIdx++
			name = fmt.Sprintf("auto_%d_%s", autoIdx, kind)
		}
		if !identRE.MatchString(name) {
			return nil, errors.New(errors.ErrorTypePattern, "invalid field name: "+name)
		}
		field := expanded.Field
		field.Name = name
		if err := addField(field); err != nil {
			return nil, err
		}

		out.WriteString("(?P<")
		out.WriteString(name)
		out.WriteString(">")
		out.WriteString(expanded.fragment)
		out.WriteString(")")
	}

	return &Result{Regex: out.String(), Fields: fields}, nil
}

// expandedField pairs the derived column type with its regex fragment.
type expandedField struct {
	types.Field
	fragment string
}

func expandKind(kind string, args []string, custom map[string]CustomMacro) (expandedField, error) {
	if m, ok := custom[kind]; ok {
		return expandedField{
			Field:    types.Field{Type: m.TypeHint},
			fragment: m.Pattern,
		}, nil
	}
	return expandBuiltin(kind, args)
}

func isKnownKind(kind string, custom map[string]CustomMacro) bool {
	if _, ok := custom[kind]; ok {
		return true
	}
	switch strings.ToLower(kind) {
	case "number", "num", "float", "string", "str", "any", "var_name", "ident",
		"uuid", "ip", "enum", "datetime", "ts", "json":
		return true
	}
	return false
}

func expandBuiltin(kind string, args []string) (expandedField, error) {
	switch strings.ToLower(kind) {
	case "number", "num":
		frag, err := numberFragment(args)
		if err != nil {
			return expandedField{}, err
		}
		return expandedField{Field: types.Field{Type: types.TypeInt}, fragment: frag}, nil

	case "float":
		return expandedField{Field: types.Field{Type: types.TypeFloat}, fragment: `-?\d+(?:\.\d+)?`}, nil

	case "string", "str", "any":
		return expandedField{Field: types.Field{Type: types.TypeString}, fragment: `.*?`}, nil

	case "var_name", "ident":
		return expandedField{Field: types.Field{Type: types.TypeString}, fragment: `[A-Za-z_][A-Za-z0-9_]*`}, nil

	case "uuid":
		return expandedField{
			Field:    types.Field{Type: types.TypeString},
			fragment: `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
		}, nil

	case "ip":
		return expandedField{
			Field:    types.Field{Type: types.TypeString},
			fragment: `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`,
		}, nil

	case "enum":
		if len(args) == 0 {
			return expandedField{}, errors.New(errors.ErrorTypePattern, "enum macro requires comma-separated values")
		}
		// Args may themselves contain commas when unquoted.
		var values []string
		for _, a := range args {
			for _, v := range strings.Split(a, ",") {
				values = append(values, strings.TrimSpace(v))
			}
		}
		escaped := make([]string, len(values))
		for i, v := range values {
			escaped[i] = regexp.QuoteMeta(v)
		}
		return expandedField{
			Field:    types.Field{Type: types.TypeEnum, EnumValues: values},
			fragment: `(?:` + strings.Join(escaped, "|") + `)`,
		}, nil

	case "datetime", "ts":
		if len(args) == 0 {
			return expandedField{Field: types.Field{Type: types.TypeDateTime}, fragment: `\S+`}, nil
		}
		frags := make([]string, len(args))
		for i, fmtStr := range args {
			frag, err := strftimeToRegex(fmtStr)
			if err != nil {
				return expandedField{}, err
			}
			frags[i] = frag
		}
		fragment := frags[0]
		if len(frags) > 1 {
			fragment = `(?:` + strings.Join(frags, "|") + `)`
		}
		return expandedField{
			Field:    types.Field{Type: types.TypeDateTime, Formats: args},
			fragment: fragment,
		}, nil

	case "json":
		return expandedField{Field: types.Field{Type: types.TypeJSON}, fragment: `\{.*?\}`}, nil

	default:
		return expandedField{}, errors.New(errors.ErrorTypeUnknownMacro, "unknown macro kind '"+kind+"'")
	}
}

// numberFragment handles the optional width argument: {{number}} is \d+,
// {{number:4}} is \d{4}, {{number:3-5}} is \d{3,5}.
func numberFragment(args []string) (string, error) {
	if len(args) == 0 {
		return `\d+`, nil
	}
	a := args[0]
	if pos := strings.IndexByte(a, '-'); pos >= 0 {
		min := strings.TrimSpace(a[:pos])
		max := strings.TrimSpace(a[pos+1:])
		if !allDigits(min) || !allDigits(max) {
			return "", errors.New(errors.ErrorTypePattern, "invalid number macro arg: "+a)
		}
		return fmt.Sprintf(`\d{%s,%s}`, min, max), nil
	}
	if allDigits(a) {
		return fmt.Sprintf(`\d{%s}`, a), nil
	}
	return "", errors.New(errors.ErrorTypePattern, "invalid number macro arg: "+a)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Regex equivalents for strftime directives used by the datetime kind.
var regexDirectives = map[byte]string{
	'Y': `\d{4}`,
	'y': `\d{2}`,
	'm': `\d{2}`,
	'd': `\d{2}`,
	'H': `\d{2}`,
	'M': `\d{2}`,
	'S': `\d{2}`,
	'f': `\d+`,
	'z': `[+-]\d{4}`,
	'Z': `[A-Za-z/_+-]+`,
	'b': `[A-Za-z]+`,
	'B': `[A-Za-z]+`,
	'a': `[A-Za-z]+`,
	'A': `[A-Za-z]+`,
	'%': `%`,
}

// strftimeToRegex translates a strftime format string into a regex fragment
// that matches timestamps written in that format.
func strftimeToRegex(format string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteString(regexp.QuoteMeta(string(c)))
			continue
		}
		i++
		if i >= len(format) {
			return "", errors.New(errors.ErrorTypePattern, "incomplete datetime format string: ends with %")
		}
		rep, ok := regexDirectives[format[i]]
		if !ok {
			return "", errors.New(errors.ErrorTypePattern, "unsupported datetime directive: %"+string(format[i]))
		}
		out.WriteString(rep)
	}
	return out.String(), nil
}
