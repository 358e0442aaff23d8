// Package params implements parameter extraction and synthesis for annotated
// geometry source files.
//
// The extractor scans the declarative preamble of an OpenSCAD-style source
// text line by line, recognizing three shapes: bracketed section headers
// (`// [Title]`), literal assignments (`name = 30; // [10:100]`) and the
// procedural keywords that end the preamble. Recognized assignments become
// ordered ParameterDescriptor values carrying the annotation's range,
// enumeration or free-text description. The synthesizer performs the inverse
// operation, splicing edited values back into the original text without
// touching any other byte.
package params

import (
	"strconv"
	"strings"

	"github.com/scadform/scadform/internal/types"
)

// Extract parses source text into an ordered list of parameter descriptors.
// The scan maintains a current-section context and stops permanently at the
// first `module` or `function` line; parameters are only recognized in the
// declarative preamble. Sigil-prefixed identifiers (`$fn`, `$t`, ...) are
// engine-internal and always skipped.
func Extract(source string) []types.ParameterDescriptor {
	lines := strings.Split(source, "\n")
	descriptors := make([]types.ParameterDescriptor, 0, 8)
	section := ""

	for idx, line := range lines {
		sl := scanLine(line)
		switch sl.kind {
		case lineStop:
			return descriptors
		case lineSection:
			section = sl.section
			continue
		case lineAssignment:
			// fall through below
		default:
			continue
		}

		if strings.HasPrefix(sl.ident, "$") {
			continue
		}

		value, typ, ok := parseLiteral(sl.rawValue)
		if !ok {
			// Expression right-hand side: silently excluded, the line is
			// left untouched by synthesis.
			continue
		}

		d := types.ParameterDescriptor{
			Name:       sl.ident,
			Section:    section,
			SourceLine: idx,
			RawLine:    line,
			Comment:    sl.comment,
			Type:       typ,
			Value:      value,
			RawValue:   sl.rawValue,
		}
		applyAnnotation(&d, sl.comment)
		descriptors = append(descriptors, d)
	}

	return descriptors
}

// applyAnnotation interprets a trailing comment. Bracketed content is matched
// first against the colon-delimited range grammar, then taken as an
// enumerated list; unbracketed comments are stored verbatim as description.
func applyAnnotation(d *types.ParameterDescriptor, comment string) {
	if comment == "" {
		return
	}
	content, ok := bracketContent(comment)
	if !ok {
		d.Description = comment
		return
	}

	if min, step, max, ok := parseRange(content); ok {
		d.Min, d.Step, d.Max = &min, step, &max
		// A range annotation always forces the numeric type.
		if d.Type != types.ParamNumber {
			d.Type = types.ParamNumber
			if f, err := strconv.ParseFloat(strings.Trim(d.RawValue, `"`), 64); err == nil {
				d.Value = f
			}
		}
		d.Options = nil
		return
	}

	d.Options, d.Ambiguous = parseOptions(content, d.Type)
}

// bracketContent returns the inner text when the whole comment is one
// bracketed annotation.
func bracketContent(comment string) (string, bool) {
	c := strings.TrimSpace(comment)
	if len(c) < 2 || c[0] != '[' || c[len(c)-1] != ']' {
		return "", false
	}
	return c[1 : len(c)-1], true
}

// parseRange matches `min:max` and `min:step:max`. The step, when present, is
// the middle operand. All operands must be decimal numbers.
func parseRange(content string) (min float64, step *float64, max float64, ok bool) {
	parts := strings.Split(content, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, nil, 0, false
	}
	nums := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, nil, 0, false
		}
		nums[i] = f
	}
	if len(nums) == 2 {
		return nums[0], nil, nums[1], true
	}
	return nums[0], &nums[1], nums[2], true
}

// parseOptions splits bracket content into an enumeration. Tokens are trimmed
// and unquoted; on numeric parameters each token is opportunistically
// re-parsed as a number, falling back to the raw token where that fails.
//
// Content that contains range punctuation or empty slots matches neither the
// range grammar nor a clean list, but is still accepted as a list. Such
// descriptors are flagged ambiguous instead of being silently normalized.
func parseOptions(content string, typ types.ParamType) ([]any, bool) {
	tokens := strings.Split(content, ",")
	options := make([]any, 0, len(tokens))
	ambiguous := strings.Contains(content, ":")

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			ambiguous = true
			continue
		}
		tok = unquote(tok)
		if typ == types.ParamNumber {
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				options = append(options, f)
				continue
			}
		}
		options = append(options, tok)
	}

	if len(options) == 0 {
		return nil, true
	}
	return options, ambiguous
}
