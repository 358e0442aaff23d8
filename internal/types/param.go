// Package types provides common type definitions used throughout the scadform
// CLI and server. This package contains shared types to avoid circular
// dependencies between packages.
package types

// ParamType classifies the literal on the right-hand side of a recognized
// assignment line. It is derived from the literal itself, never from the
// trailing annotation, with one exception: a numeric range annotation forces
// ParamNumber.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "bool"
	ParamString ParamType = "string"
)

// ParameterDescriptor is the parsed, editable representation of one source
// parameter. One descriptor is produced per recognized assignment line, in
// first-occurrence order.
type ParameterDescriptor struct {
	// Name is the assigned identifier, unique within an extracted set.
	Name string `json:"name"`
	// Section is the nearest preceding `// [Title]` header, empty when the
	// parameter appears before any section. Purely presentational grouping.
	Section string `json:"section,omitempty"`
	// SourceLine is the zero-based line offset into the original text. It is
	// the sole anchor used by synthesis and is only valid against the exact
	// text the descriptor was extracted from.
	SourceLine int `json:"sourceLine"`
	// RawLine is the original unmodified line text, retained for
	// exact-reconstruction fallback.
	RawLine string `json:"rawLine"`
	// Comment is the trailing annotation text, if any.
	Comment string `json:"comment,omitempty"`
	// Description is the free-text portion of the comment when it is not a
	// recognized range or enumeration.
	Description string `json:"description,omitempty"`
	// Type is the literal's kind: number, bool or string.
	Type ParamType `json:"type"`
	// Value is the current value: float64, bool or string depending on Type.
	// Mutable by the editing surface; initialized from the parsed literal.
	Value any `json:"value"`
	// RawValue is the literal token exactly as it appeared in the source,
	// used to keep unchanged synthesis byte-identical.
	RawValue string `json:"-"`
	// Options holds the ordered candidate values when the annotation is an
	// enumeration: strings, or float64 where the token re-parses as a number
	// on a numeric parameter. Nil otherwise.
	Options []any `json:"options,omitempty"`
	// Min, Max and Step are populated only for numeric range annotations.
	// Step stays nil for the two-operand `[min:max]` form.
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
	// Ambiguous marks bracket content that matched neither the range grammar
	// nor a clean token list but was still accepted as an options list.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// HasRange reports whether the descriptor carries a numeric range annotation.
func (d *ParameterDescriptor) HasRange() bool {
	return d.Min != nil && d.Max != nil
}

// Override carries one edited or confirmed parameter value into a compile
// request. Value serialization on the invocation line follows the same rules
// as source synthesis.
type Override struct {
	Name  string    `json:"name"`
	Value any       `json:"value"`
	Type  ParamType `json:"type"`
}

// CompileRequest is the effective source text plus the ordered list of
// overrides the editing surface changed or confirmed.
type CompileRequest struct {
	Source    string     `json:"source"`
	Overrides []Override `json:"overrides"`
}

// CompileResult is the outcome of one orchestrated build: either the mesh
// artifact bytes (ownership transferred to the caller) or an error. Exactly
// one of the two is set.
type CompileResult struct {
	// Artifact holds the opaque binary mesh payload on success.
	Artifact []byte
	// CacheHit reports whether the artifact was served from the cache
	// without an engine run.
	CacheHit bool
	// ExitStatus records the engine's completion status. A non-zero status
	// is informational only; artifact presence decides success.
	ExitStatus int
}

// LogSeverity tags one relayed engine log line.
type LogSeverity string

const (
	LogInfo  LogSeverity = "info"
	LogError LogSeverity = "error"
)
