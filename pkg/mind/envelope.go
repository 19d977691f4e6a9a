package mind

// ErrorKind classifies externally-visible pipeline failures.
type ErrorKind string

const (
	// ErrKindValidation covers rejected input: missing owner id or content.
	ErrKindValidation ErrorKind = "validation"

	// ErrKindDependency covers unreachable external services on a
	// critical path (store write, LLM generation).
	ErrKindDependency ErrorKind = "dependency"

	// ErrKindIntegrity covers data anomalies recorded as flags rather than
	// aborts (regressions, schema mismatches).
	ErrKindIntegrity ErrorKind = "integrity"

	// ErrKindGuardrail covers internal rejections that fall through to a
	// more expensive path and are never surfaced to callers as errors.
	ErrKindGuardrail ErrorKind = "guardrail"
)

// Envelope is the uniform error shape returned across pipeline boundaries.
// Fallback, when set, is safe content the caller can show instead of nothing.
type Envelope struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Fallback string    `json:"fallback,omitempty"`
}

// Error implements the error interface.
func (e *Envelope) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ValidationError builds a validation envelope.
func ValidationError(msg string) *Envelope {
	return &Envelope{Kind: ErrKindValidation, Message: msg}
}

// DependencyError builds a dependency envelope with fallback content.
func DependencyError(msg, fallback string) *Envelope {
	return &Envelope{Kind: ErrKindDependency, Message: msg, Fallback: fallback}
}
