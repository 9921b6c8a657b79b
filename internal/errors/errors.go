// Package errors provides structured error types for Shipway.
// It implements error classification and wrapping for the release pipeline.
package errors

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindPreflight indicates one or more failed preflight checks.
	KindPreflight
	// KindLock indicates the orchestrator lock is held by a live process.
	KindLock
	// KindStep indicates a pipeline step action failed.
	KindStep
	// KindState indicates a state persistence error.
	KindState
	// KindGit indicates a version control operation error.
	KindGit
	// KindRegistry indicates a package registry operation error.
	KindRegistry
	// KindReleaseHost indicates a release hosting API error.
	KindReleaseHost
	// KindBuild indicates a build tool error.
	KindBuild
	// KindValidation indicates a validation error.
	KindValidation
	// KindNotFound indicates a resource was not found (e.g. an unknown step name).
	KindNotFound
	// KindIO indicates a file I/O error.
	KindIO
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns a human-readable string for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindPreflight:
		return "preflight"
	case KindLock:
		return "lock"
	case KindStep:
		return "step"
	case KindState:
		return "state"
	case KindGit:
		return "git"
	case KindRegistry:
		return "registry"
	case KindReleaseHost:
		return "release_host"
	case KindBuild:
		return "build"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the standard error type for Shipway.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// For *Error types, it checks if both the Kind and Op match.
// For sentinel errors (errors without Op), only Kind is compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new Error with the given kind and formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op string, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Common error constructors for frequently used error types.

// Config creates a configuration error.
func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Preflight creates a preflight failure.
func Preflight(op, message string) *Error {
	return &Error{Kind: KindPreflight, Op: op, Message: message}
}

// Lock creates a lock contention error.
func Lock(op, message string) *Error {
	return &Error{Kind: KindLock, Op: op, Message: message}
}

// Step creates a step execution error.
func Step(op, message string) *Error {
	return &Error{Kind: KindStep, Op: op, Message: message}
}

// StepWrap wraps an error as a step execution error.
func StepWrap(err error, op, message string) *Error {
	return Wrap(err, KindStep, op, message)
}

// State creates a state persistence error.
func State(op, message string) *Error {
	return &Error{Kind: KindState, Op: op, Message: message}
}

// StateWrap wraps an error as a state persistence error.
func StateWrap(err error, op, message string) *Error {
	return Wrap(err, KindState, op, message)
}

// Git creates a version control error.
func Git(op, message string) *Error {
	return &Error{Kind: KindGit, Op: op, Message: message}
}

// GitWrap wraps an error as a version control error.
func GitWrap(err error, op, message string) *Error {
	return Wrap(err, KindGit, op, message)
}

// Registry creates a package registry error.
func Registry(op, message string) *Error {
	return &Error{Kind: KindRegistry, Op: op, Message: message}
}

// RegistryWrap wraps an error as a package registry error.
func RegistryWrap(err error, op, message string) *Error {
	return Wrap(err, KindRegistry, op, message)
}

// ReleaseHost creates a release hosting error.
func ReleaseHost(op, message string) *Error {
	return &Error{Kind: KindReleaseHost, Op: op, Message: message}
}

// ReleaseHostWrap wraps an error as a release hosting error.
func ReleaseHostWrap(err error, op, message string) *Error {
	return Wrap(err, KindReleaseHost, op, message)
}

// Build creates a build tool error.
func Build(op, message string) *Error {
	return &Error{Kind: KindBuild, Op: op, Message: message}
}

// BuildWrap wraps an error as a build tool error.
func BuildWrap(err error, op, message string) *Error {
	return Wrap(err, KindBuild, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// IO creates an I/O error.
func IO(op, message string) *Error {
	return &Error{Kind: KindIO, Op: op, Message: message}
}

// IOWrap wraps an error as an I/O error.
func IOWrap(err error, op, message string) *Error {
	return Wrap(err, KindIO, op, message)
}

// Internal creates an internal error.
func Internal(op, message string) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: message}
}

// Sensitive data redaction patterns. Registry and release-host errors can
// echo tokens from the environment; these never belong in logs or state.
var sensitivePatterns = []*regexp.Regexp{
	// npm tokens: npm_...
	regexp.MustCompile(`\bnpm_[a-zA-Z0-9]{36,}\b`),
	// GitHub tokens: ghp_..., gho_..., ghs_..., ghr_...
	regexp.MustCompile(`\bgh[posh]_[a-zA-Z0-9]{36,}\b`),
	// Generic bearer tokens
	regexp.MustCompile(`\bBearer\s+[a-zA-Z0-9_-]{20,}\b`),
	// Basic auth with password in URL
	regexp.MustCompile(`://[^:/]+:[^@]+@`),
}

// RedactSensitive removes tokens and credentials from a message.
func RedactSensitive(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// RedactError creates a new error with sensitive data redacted from its message.
// If the error is nil, returns nil.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	redacted := RedactSensitive(err.Error())
	if redacted == err.Error() {
		return err
	}
	return fmt.Errorf("%s", redacted)
}

// WrapSafe wraps an error with sensitive data redacted.
func WrapSafe(err error, kind Kind, op, message string) *Error {
	if err == nil {
		return &Error{Kind: kind, Op: op, Message: message}
	}
	return Wrap(RedactError(err), kind, op, message)
}
