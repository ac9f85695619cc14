package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// As and Is re-export the standard helpers so callers need one import
func As(err error, target any) bool { return stderrors.As(err, target) }

// Is reports whether any error in the chain matches target
func Is(err, target error) bool { return stderrors.Is(err, target) }

// Type represents the category of error
type Type int

const (
	// TypeStoreUnavailable - graph store unreachable, retryable with backoff
	TypeStoreUnavailable Type = iota
	// TypeIntegrity - constraint violation (e.g. dangling edge), skip record and continue
	TypeIntegrity
	// TypeAgentTimeout - an agent call exceeded its deadline, retry up to budget then degrade
	TypeAgentTimeout
	// TypeLLMService - LLM completion failure (timeout, rate limit), retry then fall back
	TypeLLMService
	// TypeAmbiguousEntity - multiple entities match a short name, surfaced with candidates
	TypeAmbiguousEntity
	// TypeInvalidIntent - a query intent outside the allow-list; a planning bug, fatal
	TypeInvalidIntent
	// TypeConfig - missing or invalid configuration
	TypeConfig
	// TypeValidation - invalid input data
	TypeValidation
	// TypeInternal - unexpected internal state
	TypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact the current turn
	SeverityHigh
	// SeverityCritical - must be addressed, aborts the turn
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type      Type
	Severity  Severity
	Message   string
	Cause     error
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should abort the whole turn
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// Retryable reports whether the operation that produced this error
// may be retried at the point of occurrence.
func (e *Error) Retryable() bool {
	switch e.Type {
	case TypeStoreUnavailable, TypeAgentTimeout, TypeLLMService:
		return true
	}
	return false
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	return sb.String()
}

func typeString(t Type) string {
	switch t {
	case TypeStoreUnavailable:
		return "STORE_UNAVAILABLE"
	case TypeIntegrity:
		return "INTEGRITY"
	case TypeAgentTimeout:
		return "AGENT_TIMEOUT"
	case TypeLLMService:
		return "LLM_SERVICE"
	case TypeAmbiguousEntity:
		return "AMBIGUOUS_ENTITY"
	case TypeInvalidIntent:
		return "INVALID_INTENT"
	case TypeConfig:
		return "CONFIG"
	case TypeValidation:
		return "VALIDATION"
	case TypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a new error with the given type, severity, and message
func New(errType Type, severity Severity, message string) *Error {
	return &Error{
		Type:      errType,
		Severity:  severity,
		Message:   message,
		Context:   make(map[string]any),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType Type, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:      errType,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]any),
		Timestamp: time.Now().UTC(),
	}
}

// Convenience constructors for the taxonomy

// StoreUnavailable wraps a graph-store connectivity failure
func StoreUnavailable(err error, message string) *Error {
	return Wrap(err, TypeStoreUnavailable, SeverityHigh, message)
}

// StoreUnavailablef wraps a graph-store connectivity failure with formatting
func StoreUnavailablef(err error, format string, args ...any) *Error {
	return Wrap(err, TypeStoreUnavailable, SeverityHigh, fmt.Sprintf(format, args...))
}

// Integrity creates a constraint-violation error for a single record
func Integrity(message string) *Error {
	return New(TypeIntegrity, SeverityLow, message)
}

// Integrityf creates a constraint-violation error with formatting
func Integrityf(format string, args ...any) *Error {
	return New(TypeIntegrity, SeverityLow, fmt.Sprintf(format, args...))
}

// AgentTimeout creates a timeout error for a single agent call
func AgentTimeout(agent string, timeout time.Duration) *Error {
	e := New(TypeAgentTimeout, SeverityMedium,
		fmt.Sprintf("agent %s exceeded deadline of %s", agent, timeout))
	return e.WithContext("agent", agent).WithContext("timeout", timeout.String())
}

// LLMService wraps a completion-service failure
func LLMService(err error, message string) *Error {
	return Wrap(err, TypeLLMService, SeverityMedium, message)
}

// AmbiguousEntity creates an error carrying the ranked candidate list
func AmbiguousEntity(name string, candidates []string) *Error {
	e := New(TypeAmbiguousEntity, SeverityLow,
		fmt.Sprintf("entity %q matches %d candidates", name, len(candidates)))
	return e.WithContext("name", name).WithContext("candidates", candidates)
}

// InvalidIntent creates a contract-violation error; indicates a planning bug
func InvalidIntent(message string) *Error {
	return New(TypeInvalidIntent, SeverityCritical, message)
}

// InvalidIntentf creates a contract-violation error with formatting
func InvalidIntentf(format string, args ...any) *Error {
	return New(TypeInvalidIntent, SeverityCritical, fmt.Sprintf(format, args...))
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(TypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...any) *Error {
	return New(TypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(TypeValidation, SeverityHigh, message)
}

// InternalError creates an internal error
func InternalError(message string) *Error {
	return New(TypeInternal, SeverityCritical, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...any) *Error {
	return New(TypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error should abort the turn
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}

	return false
}

// IsRetryable checks if an error may be retried at the point of occurrence
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.Retryable()
	}

	return false
}

// GetType returns the type of an error
func GetType(err error) Type {
	if err == nil {
		return TypeInternal
	}

	if e, ok := err.(*Error); ok {
		return e.Type
	}

	return TypeInternal
}
