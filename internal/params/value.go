package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scadform/scadform/internal/types"
)

// parseLiteral interprets a right-hand-side token as a literal value.
// `true`/`false` parse as bool, a fully double-quoted token as string (no
// unescaping), a float-parseable token as number. Anything else is an
// expression and returns ok=false; that is not an error, the line is simply
// excluded from the customizable set.
func parseLiteral(raw string) (any, types.ParamType, bool) {
	switch raw {
	case "true":
		return true, types.ParamBool, true
	case "false":
		return false, types.ParamBool, true
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1], types.ParamString, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, types.ParamNumber, true
	}
	return nil, "", false
}

// FormatValue serializes a parameter value the way it is written back into
// source text and onto the engine invocation line: bool as `true`/`false`,
// string re-wrapped in double quotes, number in decimal text form.
//
// Embedded quotes in an edited string value are not escaped. The source
// grammar has no escape sequences, so there is nothing faithful to emit; the
// limitation is documented rather than silently "fixed".
func FormatValue(v any, t types.ParamType) string {
	switch t {
	case types.ParamBool:
		if b, ok := v.(bool); ok && b {
			return "true"
		}
		return "false"
	case types.ParamString:
		return `"` + toString(v) + `"`
	default:
		return formatNumber(v)
	}
}

// ParseOverrideValue interprets a command-line override token. Literal
// spellings follow the source rules; a bare token that is neither bool nor
// number becomes a string, which keeps shell quoting out of the way.
func ParseOverrideValue(raw string) (any, types.ParamType) {
	if v, t, ok := parseLiteral(raw); ok {
		return v, t
	}
	return raw, types.ParamString
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// valueUnchanged reports whether the descriptor's current value still equals
// the literal it was parsed from. Unchanged values synthesize back as the
// original token so that round-trips stay byte-identical even for spellings
// the formatter would normalize (`30.0`, `.5`).
func valueUnchanged(value any, t types.ParamType, raw string) bool {
	orig, _, ok := parseLiteral(raw)
	if !ok {
		return false
	}
	if value == orig {
		return true
	}
	if t == types.ParamNumber {
		a, aok := asFloat(value)
		b, bok := asFloat(orig)
		if !aok || !bok {
			return false
		}
		// NaN literals compare unequal to themselves but are still the
		// untouched original value.
		return a == b || a != a && b != b
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// unquote strips one pair of enclosing double quotes, if present.
func unquote(tok string) string {
	if len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
		return tok[1 : len(tok)-1]
	}
	return tok
}
