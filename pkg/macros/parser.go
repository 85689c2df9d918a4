// Package macros implements the pattern macro language: locating
// {{name:kind(args)}} forms inside a user pattern and expanding them into
// named-capture regex fragments with typed column schemas.
package macros

import (
	"strings"
	"unicode"

	"github.com/lflog/lflog/pkg/errors"
)

// Invocation is a single parsed macro occurrence.
type Invocation struct {
	// Field is the column name, empty when the user wrote a bare kind
	// like {{number}}.
	Field string
	// Kind is the macro kind (builtin or custom).
	Kind string
	// Args are the parenthesised arguments, unquoted.
	Args []string
}

// Segment is one piece of a pattern: either literal regex text or a macro.
type Segment struct {
	Literal string
	Macro   *Invocation
}

// Split tokenises a pattern into an ordered stream of literal and macro
// segments. `\{{` escapes a literal open brace pair.
func Split(pattern string) ([]Segment, error) {
	var segments []Segment
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() > 0 {
			segments = append(segments, Segment{Literal: literal.String()})
			literal.Reset()
		}
	}

	i := 0
	for i < len(pattern) {
		if i+1 < len(pattern) && pattern[i] == '{' && pattern[i+1] == '{' {
			if i > 0 && pattern[i-1] == '\\' {
				// Drop the escaping backslash already buffered and keep
				// the braces as literal text.
				s := literal.String()
				literal.Reset()
				literal.WriteString(s[:len(s)-1])
				literal.WriteString("{{")
				i += 2
				continue
			}

			j := i + 2
			found := false
			for j+1 < len(pattern) {
				if pattern[j] == '}' && pattern[j+1] == '}' {
					found = true
					break
				}
				j++
			}
			if !found {
				return nil, errors.New(errors.ErrorTypePattern, "unclosed '{{' in pattern")
			}

			inv, err := parseInvocation(pattern[i+2 : j])
			if err != nil {
				return nil, err
			}
			flushLiteral()
			segments = append(segments, Segment{Macro: inv})
			i = j + 2
			continue
		}

		literal.WriteByte(pattern[i])
		i++
	}
	flushLiteral()

	return segments, nil
}

// parseInvocation parses the text between {{ and }}. Supported shapes:
//
//	field:kind(arg1, arg2)
//	kind(arg1)
//	field:kind
//	kind
//
// A colon followed by digits, a range, or a comma list is read as shorthand
// args instead of a kind, so {{number:3-5}} means number with arg "3-5".
func parseInvocation(s string) (*Invocation, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New(errors.ErrorTypePattern, "empty macro token")
	}

	if paren := strings.IndexByte(s, '('); paren >= 0 {
		before := s[:paren]
		after := s[paren+1:]
		if !strings.HasSuffix(after, ")") {
			return nil, errors.New(errors.ErrorTypePattern, "unclosed parenthesis in macro invocation: "+s)
		}
		inside := after[:len(after)-1]
		if colon := strings.IndexByte(before, ':'); colon >= 0 {
			return &Invocation{
				Field: strings.TrimSpace(before[:colon]),
				Kind:  strings.TrimSpace(before[colon+1:]),
				Args:  splitArgs(inside),
			}, nil
		}
		return &Invocation{
			Kind: strings.TrimSpace(before),
			Args: splitArgs(inside),
		}, nil
	}

	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		left := strings.TrimSpace(s[:colon])
		right := strings.TrimSpace(s[colon+1:])
		if startsWithDigit(right) || strings.ContainsAny(right, "-,") {
			return &Invocation{Kind: left, Args: []string{right}}, nil
		}
		return &Invocation{Field: left, Kind: right}, nil
	}

	return &Invocation{Kind: s}, nil
}

func startsWithDigit(s string) bool {
	return s != "" && unicode.IsDigit(rune(s[0]))
}

// splitArgs splits a comma-separated argument string, respecting single and
// double quoted strings. Inside quotes a backslash escapes the next rune.
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	var inQuote rune

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuote != 0:
			if c == '\\' && i+1 < len(runes) {
				cur.WriteRune(runes[i+1])
				i++
			} else if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		args = append(args, strings.TrimSpace(cur.String()))
	}

	return args
}
