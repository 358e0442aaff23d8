package params

import (
	"strings"

	"github.com/scadform/scadform/internal/types"
)

// Synthesize re-serializes source text with the descriptors' current values
// substituted back in. On each recorded line only the literal token strictly
// between the assignment operator and the terminating semicolon is replaced;
// leading whitespace, identifier, operator, delimiter and trailing comment
// are preserved character for character. Descriptors whose recorded line no
// longer matches the text they were extracted from are left alone.
//
// Applying Synthesize with every value unchanged reproduces the original
// text exactly.
func Synthesize(source string, descriptors []types.ParameterDescriptor) string {
	lines := strings.Split(source, "\n")

	for i := range descriptors {
		d := &descriptors[i]
		if d.SourceLine < 0 || d.SourceLine >= len(lines) {
			continue
		}
		line := lines[d.SourceLine]
		if line != d.RawLine {
			// The text was modified outside synthesis; the line anchor is
			// no longer trustworthy.
			continue
		}

		sl := scanLine(line)
		if sl.kind != lineAssignment || sl.ident != d.Name {
			continue
		}

		token := FormatValue(d.Value, d.Type)
		if valueUnchanged(d.Value, d.Type, sl.rawValue) {
			token = sl.rawValue
		}
		lines[d.SourceLine] = line[:sl.valStart] + token + line[sl.valEnd:]
	}

	return strings.Join(lines, "\n")
}

// Apply copies override values onto matching descriptors by name, returning
// the number of overrides that found a target. Types are not coerced; an
// override's value replaces the descriptor's value as-is and its declared
// type is ignored in favor of the descriptor's.
func Apply(descriptors []types.ParameterDescriptor, overrides []types.Override) int {
	byName := make(map[string]*types.ParameterDescriptor, len(descriptors))
	for i := range descriptors {
		byName[descriptors[i].Name] = &descriptors[i]
	}
	applied := 0
	for _, o := range overrides {
		if d, ok := byName[o.Name]; ok {
			d.Value = o.Value
			applied++
		}
	}
	return applied
}
