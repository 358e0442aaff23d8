package server

import "github.com/scadform/scadform/internal/types"

// Channel message kinds. A request is exactly one inbound compile-request
// followed by zero or more log messages and exactly one terminal result or
// error message.
const (
	MessageCompileRequest = "compile-request"
	MessageLog            = "log"
	MessageResult         = "result"
	MessageError          = "error"
)

// Envelope is the wire form of every channel message. Type selects which of
// the remaining fields are meaningful.
type Envelope struct {
	Type string `json:"type"`

	// compile-request
	Source    string           `json:"source,omitempty"`
	Overrides []types.Override `json:"overrides,omitempty"`

	// log
	Text     string            `json:"text,omitempty"`
	Severity types.LogSeverity `json:"severity,omitempty"`

	// result; encoding/json carries the artifact as base64
	Artifact   []byte `json:"artifact,omitempty"`
	CacheHit   bool   `json:"cacheHit,omitempty"`
	ExitStatus int    `json:"exitStatus,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
