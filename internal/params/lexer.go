package params

import "strings"

// lineKind classifies one source line into the three shapes the extractor
// recognizes, plus a catch-all for everything else.
type lineKind int

const (
	lineOther lineKind = iota
	// lineSection is a bracketed header comment with nothing else on the
	// line: `// [Title]`.
	lineSection
	// lineAssignment is `identifier = <rhs> ; [// comment]`.
	lineAssignment
	// lineStop begins a procedural definition block (`module` / `function`).
	// Extraction stops permanently here.
	lineStop
)

// scannedLine is the lexer's view of one source line. For assignments the
// value extent [valStart, valEnd) addresses the raw right-hand-side token
// strictly between `=` and `;`, excluding surrounding whitespace, so that
// synthesis can splice a new literal without disturbing anything else.
type scannedLine struct {
	kind     lineKind
	section  string // lineSection: header title
	ident    string // lineAssignment: assigned identifier
	rawValue string // lineAssignment: RHS token as written
	valStart int    // lineAssignment: byte offset of rawValue
	valEnd   int    // lineAssignment: byte offset one past rawValue
	comment  string // lineAssignment: trailing comment text, trimmed
}

// scanLine lexes a single line. It never fails: lines that fit no recognized
// shape come back as lineOther.
func scanLine(line string) scannedLine {
	i := skipSpace(line, 0)

	if strings.HasPrefix(line[i:], "//") {
		if title, ok := sectionTitle(line[i+2:]); ok {
			return scannedLine{kind: lineSection, section: title}
		}
		return scannedLine{kind: lineOther}
	}

	ident, j := scanIdent(line, i)
	if ident == "" {
		return scannedLine{kind: lineOther}
	}
	if ident == "module" || ident == "function" {
		return scannedLine{kind: lineStop}
	}

	j = skipSpace(line, j)
	if j >= len(line) || line[j] != '=' {
		return scannedLine{kind: lineOther}
	}
	j++

	valStart := skipSpace(line, j)
	semi, ok := findTerminator(line, valStart)
	if !ok {
		return scannedLine{kind: lineOther}
	}
	valEnd := valStart + len(strings.TrimRight(line[valStart:semi], " \t"))
	if valEnd <= valStart {
		return scannedLine{kind: lineOther}
	}

	sl := scannedLine{
		kind:     lineAssignment,
		ident:    ident,
		rawValue: line[valStart:valEnd],
		valStart: valStart,
		valEnd:   valEnd,
	}

	rest := strings.TrimSpace(line[semi+1:])
	if strings.HasPrefix(rest, "//") {
		sl.comment = strings.TrimSpace(rest[2:])
	}
	return sl
}

// sectionTitle matches the remainder of a `//` comment against `[Title]`
// with nothing else trailing.
func sectionTitle(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '[' || rest[len(rest)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// findTerminator locates the statement-terminating semicolon, skipping any
// that appear inside a double-quoted string.
func findTerminator(line string, from int) (int, bool) {
	inQuote := false
	for k := from; k < len(line); k++ {
		switch line[k] {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return k, true
			}
		}
	}
	return 0, false
}

// scanIdent consumes an identifier at position i. The engine-internal sigil
// `$` is accepted as a leading character so callers can recognize and skip
// special variables.
func scanIdent(line string, i int) (string, int) {
	start := i
	if i < len(line) && line[i] == '$' {
		i++
	}
	for i < len(line) {
		c := line[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > start && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	if i == start || line[start] == '$' && i == start+1 {
		return "", start
	}
	return line[start:i], i
}

func skipSpace(line string, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
